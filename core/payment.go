package core

import (
	"context"

	"github.com/pkg/errors"
)

// PaymentStatus is the lifecycle state of a payment intent as reported by
// the gateway.
type PaymentStatus string

const (
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCanceled   PaymentStatus = "canceled"
	PaymentStatusFailed     PaymentStatus = "requires_payment_method"
)

// Payment webhook event types.
const (
	PaymentEventSucceeded = "payment_intent.succeeded"
	PaymentEventFailed    = "payment_intent.payment_failed"
)

var ErrPaymentIntentNotFound = errors.New("payment intent not found")

type (
	// PaymentIntent is the gateway's representation of a single payment
	// attempt and its lifecycle state.
	PaymentIntent struct {
		ID           string
		ClientSecret string
		Status       PaymentStatus
		AmountCents  int64
		Currency     string
		ReceiptEmail string
		Metadata     map[string]string
	}

	// PaymentEvent is a verified webhook notification from the gateway.
	PaymentEvent struct {
		ID     string
		Type   string
		Intent PaymentIntent
	}

	// PaymentService wraps the external payment gateway.
	PaymentService interface {
		CreateIntent(ctx context.Context, amountCents int64, currency, receiptEmail string, metadata map[string]string) (PaymentIntent, error)
		RetrieveIntent(ctx context.Context, id string) (PaymentIntent, error)
		// VerifyWebhook checks the payload signature and decodes the event.
		VerifyWebhook(payload []byte, sigHeader string) (PaymentEvent, error)
	}
)
