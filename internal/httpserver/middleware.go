package httpserver

import (
	"net/http"
	"strings"

	"heavenly-backend/internal/domain"
	customersvc "heavenly-backend/internal/service/customer"
	"github.com/gin-gonic/gin"
)

const customerCtxKey = "customer"

// authMiddleware resolves the bearer token (or, for websocket upgrades, the
// token query parameter) to a customer and aborts with 401 otherwise.
func authMiddleware(svc *customersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			token = q
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		customer, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(customerCtxKey, customer)
		c.Next()
	}
}

// adminMiddleware gates admin-only routes; it must run after authMiddleware.
func adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		customer := currentCustomer(c)
		if customer == nil || customer.Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func currentCustomer(c *gin.Context) *domain.Customer {
	v, ok := c.Get(customerCtxKey)
	if !ok {
		return nil
	}
	customer, _ := v.(*domain.Customer)
	return customer
}

// recipientFor maps the authenticated customer to their notification
// recipient: admins share the admin group, everyone else is addressed by id.
func recipientFor(customer *domain.Customer) domain.Recipient {
	if customer.Role == domain.RoleAdmin {
		return domain.AdminRecipient()
	}
	return domain.UserRecipient(customer.ID)
}
