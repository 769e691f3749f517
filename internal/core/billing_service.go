package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/pkg/messagequeue"
)

// Billing errors.
var (
	ErrWebhookSignature  = errors.New("stripe webhook signature verification failed")
	ErrWebhookPayload    = errors.New("stripe webhook payload could not be decoded")
	ErrWebhookProcessing = errors.New("stripe webhook processing failed")
	ErrCheckoutLink      = errors.New("checkout link is not configured")
)

// Stripe event types the service acts on.
const (
	eventCheckoutCompleted             = "checkout.session.completed"
	eventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// EventSubscriptionActivated is published on the billing queue after an
// upgrade is committed.
const EventSubscriptionActivated = "subscription.activated"

// BillingEvent is the message body on the billing queue.
type BillingEvent struct {
	Type           string    `json:"type"`
	UserID         string    `json:"userId"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name,omitempty"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	SessionID      string    `json:"sessionId"`
	SubscriptionID string    `json:"subscriptionId"`
	InvoiceID      string    `json:"invoiceId"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// Notice is the message shown after returning from checkout.
type Notice struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BillingConfig holds the billing settings.
type BillingConfig struct {
	WebhookSecret string
	PaymentLink   string
	Queue         string
}

type billingService struct {
	store     db.DocumentStore
	publisher messagequeue.MessageQueue
	cfg       BillingConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewBillingService creates a BillingService. publisher may be nil, in
// which case no billing events are emitted.
func NewBillingService(store db.DocumentStore, publisher messagequeue.MessageQueue, cfg BillingConfig, logger *zap.Logger) BillingService {
	return &billingService{store: store, publisher: publisher, cfg: cfg, logger: logger, now: time.Now}
}

// CheckoutURL returns the payment link tagged with the identity, so the
// completed session can be attributed to it.
func (s *billingService) CheckoutURL(identity *models.Identity) (string, error) {
	if s.cfg.PaymentLink == "" {
		return "", ErrCheckoutLink
	}
	u, err := url.Parse(s.cfg.PaymentLink)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCheckoutLink, err)
	}
	if identity != nil {
		q := u.Query()
		q.Set("client_reference_id", identity.UID)
		if identity.Email != "" {
			q.Set("prefilled_email", identity.Email)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// ReturnNotice maps the upgrade marker of the checkout return to a notice.
// Nothing is written here.
func (s *billingService) ReturnNotice(upgrade string) *Notice {
	switch upgrade {
	case "success":
		return &Notice{Status: "success", Message: "Payment received. Your plan will update to Pro shortly."}
	case "cancel":
		return &Notice{Status: "cancel", Message: "Payment was cancelled. You have not been charged."}
	}
	return nil
}

// HandleWebhook verifies and applies one Stripe event.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	switch string(event.Type) {
	case eventCheckoutCompleted, eventCheckoutAsyncPaymentSucceeded:
		var session stripe.CheckoutSession
		if event.Data == nil {
			return ErrWebhookPayload
		}
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		return s.completeCheckout(ctx, event.ID, &session)
	default:
		s.logger.Debug("Ignoring Stripe event", zap.String("eventID", event.ID), zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *billingService) completeCheckout(ctx context.Context, eventID string, session *stripe.CheckoutSession) error {
	logger := s.logger.With(zap.String("eventID", eventID), zap.String("sessionID", session.ID))
	if session.ClientReferenceID == "" {
		logger.Warn("Checkout session has no client_reference_id, cannot attribute payment")
		return nil
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		logger.Info("Checkout session not paid yet", zap.String("paymentStatus", string(session.PaymentStatus)))
		return nil
	}

	upgrade := NewUpgrade(session, s.now().UTC())
	if err := s.store.Commit(ctx, upgrade.Writes()); err != nil {
		logger.Error("Failed to commit upgrade records", zap.String("uid", upgrade.UserID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrWebhookProcessing, err)
	}
	logger.Info("Subscription activated", zap.String("uid", upgrade.UserID), zap.String("subscriptionID", upgrade.SubscriptionID))

	s.publish(ctx, upgrade)
	return nil
}

func (s *billingService) publish(ctx context.Context, u Upgrade) {
	if s.publisher == nil {
		return
	}
	body, err := json.Marshal(BillingEvent{
		Type:           EventSubscriptionActivated,
		UserID:         u.UserID,
		Email:          u.Email,
		Name:           u.Name,
		Amount:         u.Amount,
		Currency:       u.Currency,
		SessionID:      u.SessionID,
		SubscriptionID: u.SubscriptionID,
		InvoiceID:      u.InvoiceID,
		OccurredAt:     u.At,
	})
	if err != nil {
		s.logger.Error("Failed to encode billing event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, s.cfg.Queue, body); err != nil {
		s.logger.Warn("Failed to publish billing event", zap.String("uid", u.UserID), zap.Error(err))
	}
}

// Upgrade is the record set of one paid checkout session.
type Upgrade struct {
	UserID         string
	Email          string
	Name           string
	SessionID      string
	CustomerID     string
	PaymentID      string
	SubscriptionID string
	InvoiceID      string
	Amount         int64
	Currency       string
	At             time.Time
}

// NewUpgrade derives the records from a checkout session. Ids missing from
// the session are derived from the session id so redelivery overwrites.
func NewUpgrade(session *stripe.CheckoutSession, at time.Time) Upgrade {
	u := Upgrade{
		UserID:         session.ClientReferenceID,
		SessionID:      session.ID,
		CustomerID:     "cus_" + session.ID,
		PaymentID:      "pay_" + session.ID,
		SubscriptionID: "sub_" + session.ID,
		InvoiceID:      "in_" + session.ID,
		Amount:         session.AmountTotal,
		Currency:       string(session.Currency),
		Name:           "Customer",
		At:             at,
	}
	if session.Customer != nil && session.Customer.ID != "" {
		u.CustomerID = session.Customer.ID
	}
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		u.PaymentID = session.PaymentIntent.ID
	}
	if session.Subscription != nil && session.Subscription.ID != "" {
		u.SubscriptionID = session.Subscription.ID
	}
	if session.Invoice != nil && session.Invoice.ID != "" {
		u.InvoiceID = session.Invoice.ID
	}
	if u.Currency == "" {
		u.Currency = models.CurrencyUSD
	}
	u.Email = session.CustomerEmail
	if d := session.CustomerDetails; d != nil {
		if d.Email != "" {
			u.Email = d.Email
		}
		if d.Name != "" {
			u.Name = d.Name
		}
	}
	return u
}

// Writes returns the customer, payment, subscription and invoice documents.
func (u Upgrade) Writes() []db.Write {
	customer := models.Customer{UserID: u.UserID, Email: u.Email, Name: u.Name, CreatedAt: u.At, UpdatedAt: u.At}
	payment := models.Payment{CustomerID: u.CustomerID, UserID: u.UserID, Amount: u.Amount, Currency: u.Currency,
		Status: models.PaymentSucceeded, CreatedAt: u.At, UpdatedAt: u.At}
	subscription := models.Subscription{CustomerID: u.CustomerID, UserID: u.UserID, Plan: models.PlanPro,
		Status: models.SubscriptionActive, CreatedAt: u.At, UpdatedAt: u.At}
	invoice := models.Invoice{CustomerID: u.CustomerID, UserID: u.UserID, Amount: u.Amount, Currency: u.Currency,
		Status: models.InvoicePaid, CreatedAt: u.At, UpdatedAt: u.At}
	return []db.Write{
		{Collection: db.UserCollection(u.UserID, db.CustomersCollection), ID: u.CustomerID, Data: customer.Fields()},
		{Collection: db.UserCollection(u.UserID, db.PaymentsCollection), ID: u.PaymentID, Data: payment.Fields()},
		{Collection: db.UserCollection(u.UserID, db.SubscriptionsCollection), ID: u.SubscriptionID, Data: subscription.Fields()},
		{Collection: db.UserCollection(u.UserID, db.InvoicesCollection), ID: u.InvoiceID, Data: invoice.Fields()},
	}
}
