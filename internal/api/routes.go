package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/config"
	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/middleware"
)

// Services are the collaborators the routes are wired with.
type Services struct {
	Auth      core.AuthService
	Billing   core.BillingService
	Files     core.FileService
	Notes     core.NoteService
	Team      core.TeamService
	Bootstrap core.Bootstrapper
	Verifier  core.TokenVerifier
	Store     db.DocumentStore
	Sealer    core.ContentSealer
	// Objects serves /objects on the memory backend; nil elsewhere.
	Objects   ObjectSource
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (Logging, Recovery, CORS) is applied to the router by the caller.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
	services Services,
) {
	limits := core.FileLimits{MaxUploadBytes: appConfig.MaxUploadBytes, FreeTierFiles: appConfig.FreeTierItemLimit}

	authHandler := NewAuthHandler(services.Auth, logger)
	billingHandler := NewBillingHandler(services.Billing, logger)
	fileHandler := NewFileHandler(services.Files, limits, logger)
	noteHandler := NewNoteHandler(services.Notes, appConfig.FreeTierItemLimit, logger)
	teamHandler := NewTeamHandler(services.Team, logger)
	dashboardHandler := NewDashboardHandler(services.Store, services.Sealer, services.Bootstrap,
		services.Verifier, appConfig.IdentityRecheckInterval, logger)

	// Multipart bodies above this are spooled to disk by gin.
	router.MaxMultipartMemory = appConfig.MaxUploadBytes

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/sign-in", authHandler.SignIn)
			authGroup.POST("/sign-up", authHandler.SignUp)
			authGroup.POST("/federated", authHandler.FederatedSignIn)
			authGroup.GET("/view", authHandler.View)
			authGroup.POST("/sign-out", authMW.VerifyToken(), authHandler.SignOut)
		}

		// Everything below requires a verified identity.
		protected := apiV1.Group("", authMW.VerifyToken(), authMW.RequireVerifiedEmail())
		{
			protected.GET("/dashboard", dashboardHandler.Get)
			protected.GET("/dashboard/stream", dashboardHandler.Stream)

			protected.POST("/files", fileHandler.Upload)
			protected.GET("/files", fileHandler.List)
			protected.DELETE("/files/:fileId", fileHandler.Delete)
			protected.POST("/folders", fileHandler.CreateFolder)
			protected.GET("/folders", fileHandler.ListFolders)
			protected.DELETE("/folders/:folderId", fileHandler.DeleteFolder)
			protected.GET("/explorer", fileHandler.Explore)

			protected.POST("/notes", noteHandler.Create)
			protected.GET("/notes", noteHandler.List)
			protected.PUT("/notes/:noteId", noteHandler.Update)
			protected.DELETE("/notes/:noteId", noteHandler.Delete)

			protected.POST("/team", teamHandler.Create)
			protected.GET("/team", teamHandler.List)
			protected.PUT("/team/:memberId", teamHandler.Update)
			protected.DELETE("/team/:memberId", teamHandler.Delete)

			protected.GET("/billing/checkout", billingHandler.Checkout)
		}

		billingGroup := apiV1.Group("/billing")
		{
			billingGroup.GET("/return", billingHandler.Return)
			// Public; Stripe authenticates with the Stripe-Signature header.
			billingGroup.POST("/webhooks/stripe", billingHandler.HandleStripeWebhook)
		}
	}

	if services.Objects != nil {
		router.GET("/objects/*path", NewObjectHandler(services.Objects).Get)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Stora backend is healthy."})
	})

	logger.Info("API routes configured successfully under /api/v1 and /health.")
}
