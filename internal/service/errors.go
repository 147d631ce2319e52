// Package service provides business logic for the application.
package service

import (
	"errors"
	"fmt"
)

// Service errors.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPaymentNotFound = errors.New("payment reference not found")
)

// LimitExceededError reports a rejected issuance together with the
// quota state at the time of the decision.
type LimitExceededError struct {
	Limit int
	Used  int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("key limit exceeded: %d/%d used", e.Used, e.Limit)
}
