package httpserver

import (
	"net/http"

	customersvc "heavenly-backend/internal/service/customer"
	"github.com/gin-gonic/gin"
)

func signupHandler(svc *customersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in customersvc.SignupInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		customer, token, err := svc.Signup(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": customer, "token": token})
	}
}

func loginHandler(svc *customersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		customer, token, err := svc.Login(c.Request.Context(), in.Email, in.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": customer, "token": token})
	}
}
