// Package ton renders TON payment targets and verifies incoming
// transfers against the tonapi.io HTTP API.
package ton

import (
	"fmt"
	"math"
	"net/url"
)

// NanotonPerTon converts TON amounts to the chain's integer unit.
const NanotonPerTon = 1_000_000_000

// ToNanoton converts a TON amount to nanoton, rounding to the nearest
// integer unit.
func ToNanoton(amount float64) int64 {
	return int64(math.Round(amount * NanotonPerTon))
}

// Wallet renders ton:// deep links for a receiving wallet address.
type Wallet struct {
	address string
}

// NewWallet creates a Wallet renderer.
func NewWallet(address string) *Wallet {
	return &Wallet{address: address}
}

// PaymentURI renders a transfer deep link carrying the reference as the
// transfer comment, so the incoming transaction can be matched back to
// the payment intent.
func (w *Wallet) PaymentURI(amount float64, reference string) string {
	return fmt.Sprintf("ton://transfer/%s?amount=%d&text=%s",
		w.address, ToNanoton(amount), url.QueryEscape(reference))
}
