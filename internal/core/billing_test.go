package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap/zaptest"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/internal/models"
	"github.com/storahq/stora/pkg/cache"
	"github.com/storahq/stora/pkg/messagequeue"
)

const testWebhookSecret = "whsec_test_secret"

func checkoutEvent(t *testing.T, eventType string, session map[string]interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_" + fmt.Sprint(session["id"]),
		"object":      "event",
		"type":        eventType,
		"api_version": "2020-08-27",
		"created":     time.Now().Unix(),
		"data":        map[string]interface{}{"object": session},
	})
	require.NoError(t, err)
	return payload
}

func paidSession(uid string) map[string]interface{} {
	return map[string]interface{}{
		"id":                  "cs_test_1",
		"object":              "checkout.session",
		"client_reference_id": uid,
		"customer":            "cus_1",
		"subscription":        "sub_1",
		"invoice":             "in_1",
		"payment_intent":      "pi_1",
		"amount_total":        1000,
		"currency":            "usd",
		"payment_status":      "paid",
		"customer_details":    map[string]interface{}{"email": "ann@b.com", "name": "Ann"},
	}
}

func sign(payload []byte, secret string) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	}).Header
}

func newTestBilling(t *testing.T, store db.DocumentStore, queue messagequeue.MessageQueue) BillingService {
	return NewBillingService(store, queue, BillingConfig{
		WebhookSecret: testWebhookSecret,
		PaymentLink:   "https://buy.stripe.com/test_123",
		Queue:         "billing_events",
	}, zaptest.NewLogger(t))
}

func TestBillingService_CompletedCheckoutActivatesSubscription(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	queue := messagequeue.NewMemoryQueue()
	defer queue.Close()
	svc := newTestBilling(t, store, queue)

	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))

	payment, err := store.Get(ctx, db.UserCollection("u1", db.PaymentsCollection), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payment.Data["amount"])
	assert.Equal(t, "usd", payment.Data["currency"])
	assert.Equal(t, models.PaymentSucceeded, payment.Data["status"])

	sub, err := store.Get(ctx, db.UserCollection("u1", db.SubscriptionsCollection), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, sub.Data["plan"])
	assert.Equal(t, models.SubscriptionActive, sub.Data["status"])
	assert.Equal(t, "cus_1", sub.Data["customer_id"])

	invoice, err := store.Get(ctx, db.UserCollection("u1", db.InvoicesCollection), "in_1")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, invoice.Data["status"])

	customer, err := store.Get(ctx, db.UserCollection("u1", db.CustomersCollection), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", customer.Data["name"])
	assert.Equal(t, "ann@b.com", customer.Data["email"])

	pro, err := NewEntitlementChecker(store).IsPro(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, pro)

	consumeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	var event BillingEvent
	_ = queue.Consume(consumeCtx, "billing_events", func(body []byte) error {
		require.NoError(t, json.Unmarshal(body, &event))
		cancel()
		return nil
	})
	assert.Equal(t, EventSubscriptionActivated, event.Type)
	assert.Equal(t, "u1", event.UserID)
	assert.Equal(t, int64(1000), event.Amount)
	assert.Equal(t, "sub_1", event.SubscriptionID)
}

func TestBillingService_AsyncPaymentSucceeded(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)

	payload := checkoutEvent(t, "checkout.session.async_payment_succeeded", paidSession("u1"))
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))
	assert.Equal(t, 1, count(t, store, "u1", db.SubscriptionsCollection))
}

func TestBillingService_RejectsBadSignature(t *testing.T) {
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)
	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))

	err := svc.HandleWebhook(context.Background(), payload, sign(payload, "whsec_other"))
	assert.ErrorIs(t, err, ErrWebhookSignature)
	err = svc.HandleWebhook(context.Background(), payload, "")
	assert.ErrorIs(t, err, ErrWebhookSignature)
	assert.Zero(t, count(t, store, "u1", db.SubscriptionsCollection))
}

func TestBillingService_IgnoresUnattributableOrUnpaid(t *testing.T) {
	cases := map[string]func(map[string]interface{}){
		"no reference": func(s map[string]interface{}) { delete(s, "client_reference_id") },
		"unpaid":       func(s map[string]interface{}) { s["payment_status"] = "unpaid" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := db.NewMemoryStore()
			svc := newTestBilling(t, store, nil)
			session := paidSession("u1")
			mutate(session)
			payload := checkoutEvent(t, "checkout.session.completed", session)

			require.NoError(t, svc.HandleWebhook(context.Background(), payload, sign(payload, testWebhookSecret)))
			assert.Zero(t, count(t, store, "u1", db.SubscriptionsCollection))
		})
	}
}

func TestBillingService_IgnoresOtherEvents(t *testing.T) {
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)
	payload := checkoutEvent(t, "customer.created", map[string]interface{}{"id": "cus_1", "object": "customer"})
	require.NoError(t, svc.HandleWebhook(context.Background(), payload, sign(payload, testWebhookSecret)))
}

func TestBillingService_RedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)
	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))
	}
	for _, c := range bootstrapCollections() {
		assert.Equal(t, 1, count(t, store, "u1", c), c)
	}
}

func TestBillingService_FallbackIDsDeriveFromSession(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)
	session := paidSession("u1")
	for _, k := range []string{"customer", "subscription", "invoice", "payment_intent", "currency", "customer_details"} {
		delete(session, k)
	}
	payload := checkoutEvent(t, "checkout.session.completed", session)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))

	sub, err := store.Get(ctx, db.UserCollection("u1", db.SubscriptionsCollection), "sub_cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_cs_test_1", sub.Data["customer_id"])
	payment, err := store.Get(ctx, db.UserCollection("u1", db.PaymentsCollection), "pay_cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, models.CurrencyUSD, payment.Data["currency"])
	customer, err := store.Get(ctx, db.UserCollection("u1", db.CustomersCollection), "cus_cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, "Customer", customer.Data["name"])
}

func TestBillingService_CommitFailureWritesNothing(t *testing.T) {
	store := &commitHookStore{MemoryStore: db.NewMemoryStore()}
	store.hook = func(context.Context) error { return errBoom }
	svc := newTestBilling(t, store, nil)
	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))

	err := svc.HandleWebhook(context.Background(), payload, sign(payload, testWebhookSecret))
	assert.ErrorIs(t, err, ErrWebhookProcessing)
	for _, c := range bootstrapCollections() {
		assert.Zero(t, count(t, store, "u1", c), c)
	}
}

func TestBillingService_CheckoutURL(t *testing.T) {
	svc := newTestBilling(t, db.NewMemoryStore(), nil)
	link, err := svc.CheckoutURL(testIdentity("u1"))
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "buy.stripe.com", u.Host)
	assert.Equal(t, "u1", u.Query().Get("client_reference_id"))
	assert.Equal(t, "u1@b.com", u.Query().Get("prefilled_email"))

	unconfigured := NewBillingService(db.NewMemoryStore(), nil, BillingConfig{}, zaptest.NewLogger(t))
	_, err = unconfigured.CheckoutURL(testIdentity("u1"))
	assert.ErrorIs(t, err, ErrCheckoutLink)
}

func TestBillingService_ReturnNoticeWritesNothing(t *testing.T) {
	store := db.NewMemoryStore()
	svc := newTestBilling(t, store, nil)

	success := svc.ReturnNotice("success")
	require.NotNil(t, success)
	assert.Equal(t, "Payment received. Your plan will update to Pro shortly.", success.Message)
	cancel := svc.ReturnNotice("cancel")
	require.NotNil(t, cancel)
	assert.Equal(t, "Payment was cancelled. You have not been charged.", cancel.Message)
	assert.Nil(t, svc.ReturnNotice(""))
	assert.Zero(t, count(t, store, "u1", db.SubscriptionsCollection))
}

func TestBillingService_UpgradeFlipsLiveEntitlement(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	identity := testIdentity("u1")

	_, err := NewBootstrapWriter(store, cache.NewMemoryCache(), zaptest.NewLogger(t)).Run(ctx, "client", identity)
	require.NoError(t, err)

	session := NewSession(ctx, store, passthroughSealer{}, zaptest.NewLogger(t))
	defer session.Close()
	session.SetIdentity(identity)
	require.False(t, waitReady(t, session).IsPro)

	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))
	require.NoError(t, newTestBilling(t, store, nil).HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))
	require.Eventually(t, func() bool { return session.State().IsPro }, time.Second, 5*time.Millisecond)
}
