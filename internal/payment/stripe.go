// Package payment talks to the card providers: Stripe hosted checkout for
// the online shop and donations, and the Square point-of-sale app for card
// payments taken at a box office or venue.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/iliyamo/festival-boxoffice/internal/config"
)

// SessionTTL is how long a checkout session stays payable.  Stripe's
// minimum is 30 minutes; unpaid sales are released some time after this.
const SessionTTL = 30 * time.Minute

// ErrNotConfigured is returned when a provider has no credentials.
var ErrNotConfigured = errors.New("payment provider not configured")

// ErrNotPaid is returned when a checkout session exists but was not paid.
var ErrNotPaid = errors.New("payment not completed")

// LineItem is one priced line on a checkout page.
type LineItem struct {
	Name     string
	Amount   decimal.Decimal
	Quantity int64
}

// CheckoutRequest describes a hosted checkout.  Reference comes back on the
// verified session so the success callback can match it to the sale.
type CheckoutRequest struct {
	Reference  string
	Email      string
	Items      []LineItem
	SuccessURL string
	CancelURL  string
}

// Session is a created checkout session.
type Session struct {
	ID  string
	URL string
}

// Payment is a verified, paid checkout session.
type Payment struct {
	SessionID     string
	TransactionID string
	Reference     string
	Email         string
	Amount        decimal.Decimal
}

// Checkout creates and verifies hosted checkout sessions.
type Checkout interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (Session, error)
	VerifySession(ctx context.Context, sessionID string) (Payment, error)
}

// StripeCheckout implements Checkout with Stripe Checkout Sessions.
type StripeCheckout struct {
	currency string
	enabled  bool
}

// NewStripeCheckout sets the Stripe API key and returns a checkout client.
func NewStripeCheckout(cfg config.StripeConfig) *StripeCheckout {
	if cfg.SecretKey != "" {
		stripe.Key = cfg.SecretKey
	}
	return &StripeCheckout{currency: cfg.Currency, enabled: cfg.SecretKey != ""}
}

// CreateSession opens a payment-mode checkout session.  The success URL gets
// the session id appended by Stripe.
func (s *StripeCheckout) CreateSession(ctx context.Context, req CheckoutRequest) (Session, error) {
	if !s.enabled {
		return Session{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems:         lineItems(s.currency, req.Items),
		ExpiresAt:         stripe.Int64(time.Now().Add(SessionTTL).Unix()),
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	sess, err := session.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// VerifySession fetches a session and returns ErrNotPaid unless Stripe
// reports it paid.
func (s *StripeCheckout) VerifySession(ctx context.Context, sessionID string) (Payment, error) {
	if !s.enabled {
		return Payment{}, ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return Payment{}, err
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Payment{}, ErrNotPaid
	}
	p := Payment{
		SessionID:     sess.ID,
		TransactionID: sess.ID,
		Reference:     sess.ClientReferenceID,
		Amount:        FromPence(sess.AmountTotal),
	}
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		p.TransactionID = sess.PaymentIntent.ID
	}
	if sess.CustomerDetails != nil {
		p.Email = sess.CustomerDetails.Email
	}
	if p.Email == "" {
		p.Email = sess.CustomerEmail
	}
	return p, nil
}

func lineItems(currency string, items []LineItem) []*stripe.CheckoutSessionLineItemParams {
	out := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 || !it.Amount.IsPositive() {
			continue
		}
		out = append(out, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(it.Name),
				},
				UnitAmount: stripe.Int64(ToPence(it.Amount)),
			},
			Quantity: stripe.Int64(it.Quantity),
		})
	}
	return out
}

// ToPence converts a money amount to minor units, rounding half away from zero.
func ToPence(d decimal.Decimal) int64 { return d.Shift(2).Round(0).IntPart() }

// FromPence converts minor units back to a money amount.
func FromPence(p int64) decimal.Decimal { return decimal.New(p, -2) }
