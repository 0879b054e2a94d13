package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// ChargeResult is the outcome of a charge attempt against the provider.
type ChargeResult struct {
	Succeeded   bool   `json:"succeeded"`
	ProviderRef string `json:"providerRef"`
	// FailureReason carries the provider's decline detail when Succeeded is
	// false.
	FailureReason string `json:"failureReason,omitempty"`
}

// StripeCharger charges payment method tokens through Stripe payment
// intents. Each attempt carries a fresh idempotency key so a caller retry
// after a network error cannot double-charge.
type StripeCharger struct {
	log *logrus.Logger
}

func NewStripeCharger(log *logrus.Logger) *StripeCharger {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	return &StripeCharger{log: log}
}

func (c *StripeCharger) Charge(ctx context.Context, amountMinorUnits int64, currency, paymentMethodToken string) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountMinorUnits),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(paymentMethodToken),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())

	intent, err := paymentintent.New(params)
	if err != nil {
		c.log.WithError(err).Warn("stripe charge failed")
		return nil, err
	}

	result := &ChargeResult{
		Succeeded:   intent.Status == stripe.PaymentIntentStatusSucceeded,
		ProviderRef: intent.ID,
	}
	if !result.Succeeded {
		result.FailureReason = fmt.Sprintf("payment intent status %s", intent.Status)
		if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
			result.FailureReason = intent.LastPaymentError.Msg
		}
	}
	return result, nil
}
