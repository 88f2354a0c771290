// internal/app/router.go
package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authHandler "segmentbook-service/internal/handlers/auth"
	bookHandler "segmentbook-service/internal/handlers/book"
	chatHandler "segmentbook-service/internal/handlers/chat"
	donationHandler "segmentbook-service/internal/handlers/donation"
	notifyHandler "segmentbook-service/internal/handlers/notification"
	storageHandler "segmentbook-service/internal/handlers/storage"
	userHandler "segmentbook-service/internal/handlers/user"
	wsHandler "segmentbook-service/internal/handlers/websocket"
	"segmentbook-service/internal/middleware"
)

type Handlers struct {
	AuthHandler     *authHandler.AuthHandler
	UserHandler     *userHandler.UserHandler
	BookHandler     *bookHandler.BookHandler
	DonationHandler *donationHandler.DonationHandler
	NotifHandler    *notifyHandler.NotificationHandler
	ChatHandler     *chatHandler.ChatHandler
	StorageHandler  *storageHandler.StorageHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Metrics         http.Handler
	UploadDir       string
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")
	auth := h.AuthMiddleware.Auth()

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Operations ====================
	r.GET("/metrics", gin.WrapH(h.Metrics))
	r.GET("/ws", h.WSHandler.HandleConnection)
	r.Static("/storage", h.UploadDir)

	// ==================== Auth ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/refresh", h.AuthHandler.Refresh)
	}
	api.POST("/auth/logout", auth, h.AuthHandler.Logout)

	// ==================== Users & Donors ====================
	me := api.Group("/users/me", auth)
	{
		me.GET("", h.UserHandler.GetMe)
		me.PUT("", h.UserHandler.UpdateMe)
		me.GET("/books", h.BookHandler.ListOwn)
		me.GET("/books/listed", h.BookHandler.ListedNotDonated)
		me.GET("/books/received", h.BookHandler.Received)
		me.GET("/donations/total", h.BookHandler.TotalDonated)
	}

	donors := api.Group("/donors")
	{
		donors.GET("", h.UserHandler.ListDonors)
		donors.GET("/:id", h.UserHandler.GetDonor)
	}

	// ==================== Books ====================
	books := api.Group("/books")
	{
		books.GET("", h.BookHandler.ListAvailable)
		books.GET("/:id", h.BookHandler.Get)
		books.POST("", auth, h.BookHandler.Create)
		books.PUT("/:id", auth, h.BookHandler.Update)
		books.POST("/:id/mark-donated", auth, h.BookHandler.MarkDonated)
		books.POST("/:id/requests", auth, h.DonationHandler.RequestBook)
	}

	// ==================== Donation Requests ====================
	requests := api.Group("/requests", auth)
	{
		requests.GET("", h.DonationHandler.ListMine)
		requests.GET("/active/received", h.DonationHandler.ActiveReceived)
		requests.GET("/active/sent", h.DonationHandler.ActiveSent)
		requests.POST("/:id/accept", h.DonationHandler.Accept)
		requests.POST("/:id/reject", h.DonationHandler.Reject)
	}

	// ==================== Notifications ====================
	notifications := api.Group("/notifications", auth)
	{
		notifications.GET("", h.NotifHandler.GetNotifications)
		notifications.GET("/unread-count", h.NotifHandler.GetUnreadCount)
		notifications.PUT("/read-all", h.NotifHandler.MarkAllAsRead)
		notifications.PUT("/:id/read", h.NotifHandler.MarkAsRead)
	}

	// ==================== Chats ====================
	chats := api.Group("/chats", auth)
	{
		chats.GET("", h.ChatHandler.List)
		chats.GET("/:id/messages", h.ChatHandler.Messages)
		chats.POST("/:id/messages", h.ChatHandler.Send)
		chats.GET("/:id/participants", h.ChatHandler.Participants)
	}

	// ==================== Storage ====================
	api.POST("/storage/:bucket", auth, h.StorageHandler.Upload)
	api.GET("/ws/stats", auth, h.WSHandler.GetStats)
}
