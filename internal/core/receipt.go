package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/storahq/stora/pkg/mailer"
	"github.com/storahq/stora/pkg/messagequeue"
)

var receiptTemplate = template.Must(template.New("receipt").Parse(`<html>
  <body>
    <p>{{.Greeting}},</p>
    <p>Thanks for upgrading to Stora Pro. Your plan is now active.</p>
    <p>Amount: {{.Amount}}<br>Invoice: {{.InvoiceID}}<br>Subscription: {{.SubscriptionID}}</p>
  </body>
</html>`))

// ReceiptMessage renders the receipt mail for a billing event. It reports
// false for events that carry no receipt or no address to send it to.
func ReceiptMessage(event BillingEvent) (mailer.Message, bool) {
	if event.Type != EventSubscriptionActivated || event.Email == "" {
		return mailer.Message{}, false
	}
	greeting := "Hi"
	if event.Name != "" {
		greeting = "Hi " + event.Name
	}
	var body bytes.Buffer
	err := receiptTemplate.Execute(&body, struct {
		Greeting       string
		Amount         string
		InvoiceID      string
		SubscriptionID string
	}{greeting, formatAmount(event.Amount, event.Currency), event.InvoiceID, event.SubscriptionID})
	if err != nil {
		return mailer.Message{}, false
	}
	return mailer.Message{To: event.Email, Subject: "Your Stora Pro receipt", Body: body.String()}, true
}

// formatAmount renders minor units, e.g. 1000 usd as "10.00 USD".
func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}

// NewReceiptHandler returns a queue handler that mails receipts. Messages
// that cannot be decoded are dropped; a failed send is requeued.
func NewReceiptHandler(mail mailer.Mailer, logger *zap.Logger) messagequeue.Handler {
	return func(body []byte) error {
		var event BillingEvent
		if err := json.Unmarshal(body, &event); err != nil {
			logger.Warn("Dropping undecodable billing event", zap.Error(err))
			return nil
		}
		msg, ok := ReceiptMessage(event)
		if !ok {
			logger.Debug("Billing event needs no receipt", zap.String("type", event.Type), zap.String("uid", event.UserID))
			return nil
		}
		if err := mail.Send(context.Background(), msg); err != nil {
			return fmt.Errorf("failed to send receipt for %s: %w", event.SessionID, err)
		}
		logger.Info("Receipt sent", zap.String("uid", event.UserID), zap.String("invoiceID", event.InvoiceID))
		return nil
	}
}
