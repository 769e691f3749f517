package models

import "time"

// Plans and statuses stored on billing records.
const (
	PlanFree = "free"
	PlanPro  = "pro_plan"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"

	PaymentInitialized = "initialized"
	PaymentSucceeded   = "succeeded"

	InvoicePaid   = "paid"
	InvoiceUnpaid = "unpaid"

	CurrencyUSD = "usd"
)

// Customer mirrors a billing customer under users/{uid}/stripe_customers.
type Customer struct {
	ID        string    `json:"id" firestore:"-"`
	UserID    string    `json:"userId" firestore:"user_id"`
	Email     string    `json:"email" firestore:"email"`
	Name      string    `json:"name" firestore:"name"`
	CreatedAt time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updated_at"`
}

// Fields returns the document body written to Firestore.
func (c Customer) Fields() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    c.UserID,
		"email":      c.Email,
		"name":       c.Name,
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
}

// Payment mirrors a single charge.
type Payment struct {
	ID         string    `json:"id" firestore:"-"`
	CustomerID string    `json:"customerId" firestore:"customer_id"`
	UserID     string    `json:"userId" firestore:"user_id"`
	Amount     int64     `json:"amount" firestore:"amount"` // Minor units
	Currency   string    `json:"currency" firestore:"currency"`
	Status     string    `json:"status" firestore:"status"`
	CreatedAt  time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updated_at"`
}

func (p Payment) Fields() map[string]interface{} {
	return map[string]interface{}{
		"customer_id": p.CustomerID,
		"user_id":     p.UserID,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"status":      p.Status,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
}

// Subscription is the record entitlement is derived from.
type Subscription struct {
	ID         string     `json:"id" firestore:"-"`
	CustomerID string     `json:"customerId" firestore:"customer_id"`
	UserID     string     `json:"userId" firestore:"user_id"`
	Plan       string     `json:"plan" firestore:"plan"`
	Status     string     `json:"status" firestore:"status"`
	CreatedAt  time.Time  `json:"createdAt" firestore:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" firestore:"updated_at"`
	CanceledAt *time.Time `json:"canceledAt,omitempty" firestore:"canceled_at,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty" firestore:"ended_at,omitempty"`
}

func (s Subscription) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"customer_id": s.CustomerID,
		"user_id":     s.UserID,
		"plan":        s.Plan,
		"status":      s.Status,
		"created_at":  s.CreatedAt,
		"updated_at":  s.UpdatedAt,
	}
	if s.CanceledAt != nil {
		fields["canceled_at"] = *s.CanceledAt
	}
	if s.EndedAt != nil {
		fields["ended_at"] = *s.EndedAt
	}
	return fields
}

// Invoice mirrors a billing invoice.
type Invoice struct {
	ID         string    `json:"id" firestore:"-"`
	CustomerID string    `json:"customerId" firestore:"customer_id"`
	UserID     string    `json:"userId" firestore:"user_id"`
	Amount     int64     `json:"amount" firestore:"amount"`
	Currency   string    `json:"currency" firestore:"currency"`
	Status     string    `json:"status" firestore:"status"`
	CreatedAt  time.Time `json:"createdAt" firestore:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" firestore:"updated_at"`
}

func (i Invoice) Fields() map[string]interface{} {
	return map[string]interface{}{
		"customer_id": i.CustomerID,
		"user_id":     i.UserID,
		"amount":      i.Amount,
		"currency":    i.Currency,
		"status":      i.Status,
		"created_at":  i.CreatedAt,
		"updated_at":  i.UpdatedAt,
	}
}
