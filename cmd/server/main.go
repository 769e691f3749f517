package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/api"
	"github.com/storahq/stora/internal/config"
	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/internal/crypto"
	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/identity"
	"github.com/storahq/stora/internal/middleware"
	"github.com/storahq/stora/internal/objectstore"
	"github.com/storahq/stora/pkg/cache"
	"github.com/storahq/stora/pkg/mailer"
	"github.com/storahq/stora/pkg/messagequeue"
)

// identityBackend is what the auth flows and the middleware need from the
// identity provider.
type identityBackend interface {
	core.AuthProvider
	middleware.SessionRevoker
}

// backend holds the storage and identity collaborators picked by BACKEND.
type backend struct {
	store    db.DocumentStore
	objects  objectstore.ObjectStore
	// served is set on the memory backend, whose download URLs point back
	// at this server.
	served   api.ObjectSource
	identity identityBackend
	close    func()
}

func newLogger(ginMode string) (*zap.Logger, error) {
	if strings.EqualFold(ginMode, "release") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func setupBackend(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*backend, error) {
	if appConfig.Backend == config.BackendMemory {
		logger.Warn("Running on in-memory backends; data is lost on restart.")
		actionURL := strings.TrimSpace(strings.Split(appConfig.ClientURL, ",")[0]) + "/__/auth/action"
		objects := objectstore.NewMemoryStore(fmt.Sprintf("http://localhost:%s/objects", appConfig.Port))
		return &backend{
			store:    db.NewMemoryStore(),
			objects:  objects,
			served:   objects,
			identity: identity.NewMemoryProvider(actionURL),
			close:    func() {},
		}, nil
	}

	clients, err := db.InitFirebase(ctx, appConfig, logger)
	if err != nil {
		return nil, err
	}
	provider, err := identity.NewFirebaseProvider(ctx, clients.Auth, appConfig.FirebaseWebAPIKey, logger)
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}
	return &backend{
		store:    db.NewFirestoreStore(clients.Firestore),
		objects:  objectstore.NewBucketStore(clients.Bucket, appConfig.FirebaseStorageBucket),
		identity: provider,
		close: func() {
			if err := clients.Close(); err != nil {
				logger.Warn("Failed to close Firestore client", zap.Error(err))
			}
		},
	}, nil
}

func setupMarkers(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (cache.Cache, func()) {
	if appConfig.RedisAddress == "" {
		logger.Info("REDIS_ADDRESS not set, bootstrap markers are kept in memory.")
		return cache.NewMemoryCache(), func() {}
	}
	redisCache, err := cache.NewRedisCache(ctx, cache.NewRedisCacheConfig{
		Address:  appConfig.RedisAddress,
		Password: appConfig.RedisPassword,
		DB:       appConfig.RedisDB,
	}, logger)
	if err != nil {
		logger.Warn("Redis unavailable, bootstrap markers are kept in memory", zap.Error(err))
		return cache.NewMemoryCache(), func() {}
	}
	return redisCache, func() { _ = redisCache.Close() }
}

func setupQueue(appConfig *config.Config, logger *zap.Logger) messagequeue.MessageQueue {
	if appConfig.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, billing events are not published.")
		return nil
	}
	queue, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, logger)
	if err != nil {
		logger.Warn("RabbitMQ unavailable, billing events are not published", zap.Error(err))
		return nil
	}
	return queue
}

func setupMailer(appConfig *config.Config, logger *zap.Logger) mailer.Mailer {
	if !appConfig.MailConfigured() {
		logger.Warn("SMTP credentials not set, outgoing mail is logged instead of sent.")
		return mailer.LogMailer{Logger: logger}
	}
	smtpMailer, err := mailer.NewSMTPMailer(mailer.Config{
		Host:   appConfig.SMTPHost,
		Port:   appConfig.SMTPPort,
		User:   appConfig.SMTPUser,
		Pass:   appConfig.SMTPPass,
		Sender: appConfig.MailSender,
	})
	if err != nil {
		logger.Warn("Invalid SMTP settings, outgoing mail is logged instead of sent", zap.Error(err))
		return mailer.LogMailer{Logger: logger}
	}
	return smtpMailer
}

func main() {
	// --- 1. Configuration ---
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("WARNING: %v", err)
	}
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	// --- 2. Logger ---
	zapLogger, err := newLogger(appConfig.GinMode)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()
	zapLogger.Info("Application configuration loaded", zap.String("backend", appConfig.Backend))

	// --- 3. Backends ---
	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()
	be, err := setupBackend(initCtx, appConfig, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize backends", zap.Error(err))
	}
	defer be.close()

	markers, closeMarkers := setupMarkers(initCtx, appConfig, zapLogger)
	defer closeMarkers()
	queue := setupQueue(appConfig, zapLogger)
	if queue != nil {
		defer queue.Close()
	}
	mail := setupMailer(appConfig, zapLogger)

	sealer, err := crypto.NewSealerFromBase64(appConfig.EncryptionKey)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Invalid ENCRYPTION_KEY", zap.Error(err))
	}
	if sealer == nil {
		zapLogger.Warn("ENCRYPTION_KEY not set, note content is stored unencrypted.")
	}

	// --- 4. Services ---
	entitlement := core.NewEntitlementChecker(be.store)
	billingService := core.NewBillingService(be.store, queue, core.BillingConfig{
		WebhookSecret: appConfig.StripeWebhookSecret,
		PaymentLink:   appConfig.StripePaymentLink,
		Queue:         appConfig.BillingQueue,
	}, zapLogger)
	services := api.Services{
		Auth:    core.NewAuthService(be.identity, billingService, mail, zapLogger),
		Billing: billingService,
		Files: core.NewFileService(be.store, be.objects, entitlement, core.FileLimits{
			MaxUploadBytes: appConfig.MaxUploadBytes,
			FreeTierFiles:  appConfig.FreeTierItemLimit,
		}, zapLogger),
		Notes:     core.NewNoteService(be.store, entitlement, sealer, appConfig.FreeTierItemLimit, zapLogger),
		Team:      core.NewTeamService(be.store, zapLogger),
		Bootstrap: core.NewBootstrapWriter(be.store, markers, zapLogger),
		Verifier:  be.identity,
		Store:     be.store,
		Sealer:    sealer,
		Objects:   be.served,
	}
	zapLogger.Info("Core services initialized successfully.")

	// --- 5. HTTP engine ---
	if strings.EqualFold(appConfig.GinMode, "release") {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	router.Use(middleware.CORSMiddleware(appConfig))

	authMW := middleware.NewAuthMiddleware(be.identity, be.identity, zapLogger)
	api.SetupRoutes(router, appConfig, zapLogger, authMW, services)

	// --- 6. Serve with graceful shutdown ---
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", appConfig.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting gracefully.")
}
