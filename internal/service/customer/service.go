// Package customer handles signup, login and token-based authentication.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"heavenly-backend/internal/domain"
	custrepo "heavenly-backend/internal/repository/customer"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

type repo interface {
	Create(ctx context.Context, in custrepo.CreateInput) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

// Service issues and validates signed tokens for registered customers.
type Service struct {
	repo        repo
	jwtSecret   []byte
	tokenTTL    time.Duration
	passwordMin int
}

func New(repo repo, jwtSecret string) *Service {
	return &Service{
		repo:        repo,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    72 * time.Hour,
		passwordMin: 8,
	}
}

type SignupInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Signup registers a new customer and returns a signed token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Customer, string, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", fmt.Errorf("%w: valid email required", domain.ErrValidation)
	}
	password := strings.TrimSpace(in.Password)
	if len(password) < s.passwordMin {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, s.passwordMin)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	c, err := s.repo.Create(ctx, custrepo.CreateInput{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hashed),
		Role:         domain.RoleCustomer,
	})
	if err != nil {
		return nil, "", err
	}
	token, err := s.issueToken(c)
	if err != nil {
		return nil, "", err
	}
	return c, token, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Customer, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(c)
	if err != nil {
		return nil, "", err
	}
	return c, token, nil
}

// Authenticate resolves a token back to its customer.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*domain.Customer, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}
	c, err := s.repo.GetByID(ctx, sub)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) issueToken(c *domain.Customer) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  c.ID,
		"role": string(c.Role),
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
