// Command notifier consumes billing events from RabbitMQ and mails a
// receipt for every activated subscription.
package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/storahq/stora/internal/config"
	"github.com/storahq/stora/internal/core"
	"github.com/storahq/stora/pkg/mailer"
	"github.com/storahq/stora/pkg/messagequeue"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("WARNING: %v", err)
	}
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	var logger *zap.Logger
	if strings.EqualFold(appConfig.GinMode, "release") {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer logger.Sync()

	if appConfig.RabbitMQURL == "" {
		logger.Fatal("CRITICAL_ERROR: RABBITMQ_URL is required by the notifier")
	}
	queue, err := messagequeue.NewRabbitMQService(messagequeue.NewRabbitMQServiceConfig{URL: appConfig.RabbitMQURL}, logger)
	if err != nil {
		logger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer queue.Close()

	var mail mailer.Mailer = mailer.LogMailer{Logger: logger}
	if appConfig.MailConfigured() {
		smtpMailer, err := mailer.NewSMTPMailer(mailer.Config{
			Host:   appConfig.SMTPHost,
			Port:   appConfig.SMTPPort,
			User:   appConfig.SMTPUser,
			Pass:   appConfig.SMTPPass,
			Sender: appConfig.MailSender,
		})
		if err != nil {
			logger.Fatal("CRITICAL_ERROR: Invalid SMTP settings", zap.Error(err))
		}
		mail = smtpMailer
	} else {
		logger.Warn("SMTP credentials not set, receipts are logged instead of sent.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Notifier consuming billing events", zap.String("queue", appConfig.BillingQueue))
	if err := queue.Consume(ctx, appConfig.BillingQueue, core.NewReceiptHandler(mail, logger)); err != nil {
		logger.Error("Billing event consumer stopped", zap.Error(err))
	}
	logger.Info("Notifier exiting.")
}
