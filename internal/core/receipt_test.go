package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storahq/stora/internal/db"
	"github.com/storahq/stora/pkg/messagequeue"
)

func TestReceiptMessage(t *testing.T) {
	msg, ok := ReceiptMessage(BillingEvent{
		Type:           EventSubscriptionActivated,
		Email:          "ann@b.com",
		Name:           "Ann",
		Amount:         1005,
		Currency:       "usd",
		InvoiceID:      "in_1",
		SubscriptionID: "sub_1",
	})
	require.True(t, ok)
	assert.Equal(t, "ann@b.com", msg.To)
	assert.Equal(t, "Your Stora Pro receipt", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Ann,")
	assert.Contains(t, msg.Body, "10.05 USD")
	assert.Contains(t, msg.Body, "in_1")

	_, ok = ReceiptMessage(BillingEvent{Type: EventSubscriptionActivated})
	assert.False(t, ok)
	_, ok = ReceiptMessage(BillingEvent{Type: "other", Email: "ann@b.com"})
	assert.False(t, ok)
}

func TestReceiptMessage_EscapesCustomerInput(t *testing.T) {
	msg, ok := ReceiptMessage(BillingEvent{
		Type:      EventSubscriptionActivated,
		Email:     "ann@b.com",
		Name:      `<script>alert("x")</script>`,
		Amount:    1000,
		Currency:  "usd",
		InvoiceID: "in_<b>",
	})
	require.True(t, ok)
	assert.NotContains(t, msg.Body, "<script>")
	assert.NotContains(t, msg.Body, "in_<b>")
	assert.Contains(t, msg.Body, "Hi &lt;script&gt;")
}

func TestReceiptHandler(t *testing.T) {
	mail := &recordingMailer{}
	handle := NewReceiptHandler(mail, zaptest.NewLogger(t))

	assert.NoError(t, handle([]byte("not json")))
	assert.NoError(t, handle([]byte(`{"type":"subscription.activated","userId":"u1"}`)))
	assert.Empty(t, mail.sent)

	mail.err = errors.New("smtp down")
	assert.Error(t, handle([]byte(`{"type":"subscription.activated","email":"a@b.com"}`)))
}

func TestReceiptHandler_ConsumesPublishedUpgrade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := messagequeue.NewMemoryQueue()
	defer queue.Close()
	billing := newTestBilling(t, db.NewMemoryStore(), queue)

	payload := checkoutEvent(t, "checkout.session.completed", paidSession("u1"))
	require.NoError(t, billing.HandleWebhook(ctx, payload, sign(payload, testWebhookSecret)))

	mail := &recordingMailer{}
	go func() { _ = queue.Consume(ctx, "billing_events", NewReceiptHandler(mail, zaptest.NewLogger(t))) }()

	require.Eventually(t, func() bool {
		mail.mu.Lock()
		defer mail.mu.Unlock()
		return len(mail.sent) == 1
	}, time.Second, 5*time.Millisecond)
	mail.mu.Lock()
	defer mail.mu.Unlock()
	assert.Equal(t, "ann@b.com", mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Body, "10.00 USD")
}
