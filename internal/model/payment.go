package model

import "time"

// PaymentStatus is the lifecycle state of a pending payment.
// Reconciliation removes the entry instead of flipping the status, so
// waiting is the only state that is ever persisted; an abandoned intent
// simply stays waiting until externally purged.
type PaymentStatus string

// PaymentStatusWaiting marks an intent that has not been reconciled.
const PaymentStatusWaiting PaymentStatus = "waiting"

// PendingPayment is a payment intent awaiting external confirmation.
// Intents are keyed in the snapshot by their unique reference string,
// which doubles as the transfer comment the payer must include.
type PendingPayment struct {
	UserID    string        `json:"user_id"`
	Amount    float64       `json:"amount"`
	CreatedAt time.Time     `json:"created_at"`
	Status    PaymentStatus `json:"status"`
}
