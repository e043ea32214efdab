package paymentsvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"

	"github.com/trezcool/soko/core"
)

type stripeService struct {
	webhookSecret string
	logger        core.Logger
}

var _ core.PaymentService = (*stripeService)(nil)

func NewStripeService(conf *core.Config, logger core.Logger) *stripeService {
	stripe.Key = conf.Stripe.SecretKey
	return &stripeService{
		webhookSecret: conf.Stripe.WebhookSecret,
		logger:        logger,
	}
}

func (svc stripeService) CreateIntent(ctx context.Context, amountCents int64, currency, receiptEmail string, metadata map[string]string) (core.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if receiptEmail != "" {
		params.ReceiptEmail = stripe.String(receiptEmail)
	}
	for key, val := range metadata {
		params.AddMetadata(key, val)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return core.PaymentIntent{}, errors.Wrap(err, "creating payment intent")
	}
	return svc.intent(pi), nil
}

func (svc stripeService) RetrieveIntent(ctx context.Context, id string) (core.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return core.PaymentIntent{}, core.ErrPaymentIntentNotFound
		}
		return core.PaymentIntent{}, errors.Wrap(err, "retrieving payment intent")
	}
	return svc.intent(pi), nil
}

func (svc stripeService) VerifyWebhook(payload []byte, sigHeader string) (core.PaymentEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, svc.webhookSecret)
	if err != nil {
		return core.PaymentEvent{}, errors.Wrap(err, "verifying webhook signature")
	}

	var pi stripe.PaymentIntent
	if err = json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return core.PaymentEvent{}, errors.Wrap(err, "decoding webhook payment intent")
	}
	return core.PaymentEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Intent: svc.intent(&pi),
	}, nil
}

func (svc stripeService) intent(pi *stripe.PaymentIntent) core.PaymentIntent {
	return core.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       core.PaymentStatus(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		ReceiptEmail: pi.ReceiptEmail,
		Metadata:     pi.Metadata,
	}
}
