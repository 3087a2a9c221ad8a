package httpserver

import (
	"net/http"
	"strconv"

	notifrepo "heavenly-backend/internal/repository/notification"
	"github.com/gin-gonic/gin"
)

func listNotificationsHandler(repo notifrepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
		rec := recipientFor(currentCustomer(c))

		notifications, total, err := repo.ListByRecipient(c.Request.Context(), rec, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if page < 1 {
			page = 1
		}
		if limit < 1 {
			limit = 10
		}
		c.JSON(http.StatusOK, gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": (total + limit - 1) / limit,
			"data":       notifications,
		})
	}
}

func markReadHandler(repo notifrepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := recipientFor(currentCustomer(c))
		n, err := repo.MarkRead(c.Request.Context(), c.Param("id"), rec)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, n)
	}
}

func markAllReadHandler(repo notifrepo.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec := recipientFor(currentCustomer(c))
		count, err := repo.MarkAllRead(c.Request.Context(), rec)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "modifiedCount": count})
	}
}
