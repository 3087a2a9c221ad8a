package httpserver

import (
	"log"

	"heavenly-backend/internal/realtime"
	notifrepo "heavenly-backend/internal/repository/notification"
	checkoutsvc "heavenly-backend/internal/service/checkout"
	customersvc "heavenly-backend/internal/service/customer"
	ordersvc "heavenly-backend/internal/service/order"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deps bundles the services the handlers need.
type Deps struct {
	CustomerSvc      *customersvc.Service
	CheckoutSvc      *checkoutsvc.Service
	OrderSvc         *ordersvc.Service
	NotificationRepo notifrepo.Repository
	Hub              *realtime.Hub
}

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: false,
	}))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	auth := authMiddleware(deps.CustomerSvc)
	admin := adminMiddleware()

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", signupHandler(deps.CustomerSvc))
		authGroup.POST("/login", loginHandler(deps.CustomerSvc))
	}

	payments := api.Group("/payments")
	{
		// The webhook must read the raw body for signature verification,
		// so it stays outside the auth chain.
		payments.POST("/webhook", webhookHandler(deps.CheckoutSvc, logger))

		payments.POST("/create-checkout-session", auth, createCheckoutSessionHandler(deps.CheckoutSvc))
		payments.GET("/verify-order/:sessionId", auth, verifyOrderHandler(deps.OrderSvc))
		payments.GET("/orders", auth, listOrdersHandler(deps.OrderSvc))
		payments.PUT("/cancel/:orderId", auth, cancelOrderHandler(deps.OrderSvc))
		payments.POST("/request-refund/:orderId", auth, requestRefundHandler(deps.OrderSvc))
		payments.PUT("/approve-refund/:orderId", auth, admin, approveRefundHandler(deps.OrderSvc))
		payments.POST("/process-refund/:orderId", auth, admin, processRefundHandler(deps.OrderSvc))
		payments.PATCH("/shipping-status/:orderId", auth, admin, shippingStatusHandler(deps.OrderSvc))
	}

	notifications := api.Group("/notifications", auth)
	{
		notifications.GET("", listNotificationsHandler(deps.NotificationRepo))
		notifications.PUT("/mark-all-read", markAllReadHandler(deps.NotificationRepo))
		notifications.PUT("/:id", markReadHandler(deps.NotificationRepo))
	}

	router.GET("/ws", auth, websocketHandler(deps.Hub))

	return router
}
