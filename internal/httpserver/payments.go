package httpserver

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"heavenly-backend/internal/domain"
	checkoutsvc "heavenly-backend/internal/service/checkout"
	ordersvc "heavenly-backend/internal/service/order"
	"github.com/gin-gonic/gin"
)

func createCheckoutSessionHandler(svc *checkoutsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in checkoutsvc.CreateSessionInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		session, err := svc.CreateSession(c.Request.Context(), currentCustomer(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessionId": session.ID})
	}
}

// webhookHandler accepts the raw, unparsed body: signature verification
// happens over the exact bytes the gateway sent. Every failure returns a
// non-2xx status so the gateway's redelivery keeps the order from being
// lost.
func webhookHandler(svc *checkoutsvc.Service, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		err = svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			logger.Printf("webhook: %v", err)
			if errors.Is(err, domain.ErrWebhookSignature) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
			return
		}
		c.Status(http.StatusOK)
	}
}

func verifyOrderHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, err := svc.VerifyBySession(c.Request.Context(), c.Param("sessionId"), currentCustomer(c).ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"valid": false})
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true, "order": ord})
	}
}

func listOrdersHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		orders, pagination, err := svc.ListForUser(c.Request.Context(), currentCustomer(c).ID, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders, "pagination": pagination})
	}
}

func cancelOrderHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, err := svc.Cancel(c.Request.Context(), c.Param("orderId"), currentCustomer(c).ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": ord})
	}
}

func requestRefundHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, err := svc.RequestRefund(c.Request.Context(), c.Param("orderId"), currentCustomer(c).ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Refund request submitted successfully", "order": ord})
	}
}

func approveRefundHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Decision string `json:"decision" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
			return
		}
		ord, err := svc.DecideRefund(c.Request.Context(), c.Param("orderId"), domain.RefundApproval(body.Decision))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Refund request " + body.Decision, "order": ord})
	}
}

func processRefundHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ord, refund, err := svc.ExecuteRefund(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Refund processed successfully", "order": ord, "refund": refund})
	}
}

func shippingStatusHandler(svc *ordersvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
			return
		}
		ord, err := svc.UpdateShippingStatus(c.Request.Context(), c.Param("orderId"), domain.ShippingStatus(body.Status))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": ord})
	}
}
