package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/infrastructure/telemetry"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// Webhook errors
var (
	ErrWebhookNotConfigured = shared.NewDomainError("WEBHOOK_NOT_CONFIGURED", "Stripe webhook secret is not configured")
	ErrInvalidSignature     = shared.NewDomainError("INVALID_SIGNATURE", "Invalid Stripe signature")
	ErrMalformedEvent       = shared.NewDomainError("INVALID_INPUT", "Malformed Stripe event payload")
)

// Stripe metadata keys read from checkout sessions and subscriptions
const (
	MetadataLicenseKey = "license_key"
	MetadataPlan       = "plan"
)

// WebhookResult represents the result of processing a webhook event
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// StripeWebhookService applies Stripe subscription events to licenses
type StripeWebhookService struct {
	licenses   licensing.LicenseRepository
	secret     string
	pricePlans map[string]licensing.Plan
	logger     *zap.Logger
}

// NewStripeWebhookService creates a new Stripe webhook service.
// pricePlans maps Stripe price IDs to plans.
func NewStripeWebhookService(
	licenses licensing.LicenseRepository,
	webhookSecret string,
	pricePlans map[string]licensing.Plan,
	log *zap.Logger,
) *StripeWebhookService {
	if log == nil {
		log = zap.NewNop()
	}
	if pricePlans == nil {
		pricePlans = map[string]licensing.Plan{}
	}
	return &StripeWebhookService{
		licenses:   licenses,
		secret:     webhookSecret,
		pricePlans: pricePlans,
		logger:     log,
	}
}

// HandleWebhook verifies and processes a raw webhook delivery.
// Events for unknown licenses are acknowledged so Stripe stops retrying them.
func (s *StripeWebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if strings.TrimSpace(s.secret) == "" {
		return nil, ErrWebhookNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return nil, ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		logger.Enrich(ctx, s.logger).Warn("Stripe webhook signature verification failed", zap.Error(err))
		return nil, ErrInvalidSignature
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "stripe", "handle_webhook",
		telemetry.SpanAttrEvent, string(event.Type),
	)
	defer span.End()

	log := logger.Enrich(ctx, s.logger).With(
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
	)
	log.Info("Processing Stripe webhook event")

	result := &WebhookResult{EventID: event.ID, EventType: string(event.Type)}
	message, err := s.dispatch(ctx, &event)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		log.Warn("Stripe event references an unknown license, acknowledging")
		result.Message = "license not found"
		return result, nil
	case err != nil:
		log.Error("Stripe webhook processing failed", zap.Error(err))
		telemetry.RecordError(span, err)
		return nil, err
	}

	result.Processed = message != ""
	result.Message = message
	return result, nil
}

func (s *StripeWebhookService) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	if event.Data == nil {
		return "", ErrMalformedEvent
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return "", fmt.Errorf("decode checkout session: %w", err)
		}
		return s.handleCheckoutCompleted(ctx, &session)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("decode subscription: %w", err)
		}
		return s.handleSubscriptionDeleted(ctx, &sub)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", fmt.Errorf("decode invoice: %w", err)
		}
		return s.handleInvoicePaymentFailed(ctx, &inv)

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", fmt.Errorf("decode invoice: %w", err)
		}
		return s.handleInvoicePaid(ctx, &inv)
	}

	logger.Enrich(ctx, s.logger).Debug("Ignoring unhandled Stripe event", zap.String("event_type", string(event.Type)))
	return "", nil
}

func (s *StripeWebhookService) handleCheckoutCompleted(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	key := strings.TrimSpace(session.ClientReferenceID)
	if key == "" {
		key = strings.TrimSpace(session.Metadata[MetadataLicenseKey])
	}
	if key == "" {
		return "", shared.ErrNotFound
	}

	license, err := s.licenses.FindByKey(ctx, key)
	if err != nil {
		return "", err
	}

	license.LinkStripe(customerID(session.Customer), subscriptionID(session.Subscription))
	if plan, err := licensing.ParsePlan(session.Metadata[MetadataPlan]); err == nil {
		if err := license.ChangePlan(plan); err != nil {
			return "", err
		}
	}
	if license.Status != licensing.LicenseStatusActive {
		license.Reactivate()
	}

	if err := s.licenses.Save(ctx, license); err != nil {
		return "", fmt.Errorf("save license: %w", err)
	}
	return "checkout linked to license", nil
}

func (s *StripeWebhookService) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) (string, error) {
	license, err := s.findBySubscription(ctx, sub.ID, customerID(sub.Customer))
	if err != nil {
		return "", err
	}

	license.LinkStripe(customerID(sub.Customer), sub.ID)
	if plan, ok := s.planFor(sub); ok {
		if err := license.ChangePlan(plan); err != nil {
			return "", err
		}
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		license.Reactivate()
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		if err := license.Suspend(); err != nil {
			return "", err
		}
	case stripe.SubscriptionStatusCanceled:
		license.Cancel()
	}

	if err := s.licenses.Save(ctx, license); err != nil {
		return "", fmt.Errorf("save license: %w", err)
	}
	return fmt.Sprintf("license %s on plan %s", license.Status, license.Plan), nil
}

func (s *StripeWebhookService) handleSubscriptionDeleted(ctx context.Context, sub *stripe.Subscription) (string, error) {
	license, err := s.findBySubscription(ctx, sub.ID, customerID(sub.Customer))
	if err != nil {
		return "", err
	}
	license.Cancel()
	if err := s.licenses.Save(ctx, license); err != nil {
		return "", fmt.Errorf("save license: %w", err)
	}
	return "license cancelled", nil
}

func (s *StripeWebhookService) handleInvoicePaymentFailed(ctx context.Context, inv *stripe.Invoice) (string, error) {
	license, err := s.findBySubscription(ctx, invoiceSubscriptionID(inv), customerID(inv.Customer))
	if err != nil {
		return "", err
	}
	if license.Status == licensing.LicenseStatusCancelled {
		return "license already cancelled", nil
	}
	if err := license.Suspend(); err != nil {
		return "", err
	}
	if err := s.licenses.Save(ctx, license); err != nil {
		return "", fmt.Errorf("save license: %w", err)
	}
	return "license suspended", nil
}

func (s *StripeWebhookService) handleInvoicePaid(ctx context.Context, inv *stripe.Invoice) (string, error) {
	license, err := s.findBySubscription(ctx, invoiceSubscriptionID(inv), customerID(inv.Customer))
	if err != nil {
		return "", err
	}
	if license.Status != licensing.LicenseStatusSuspended {
		return "license unchanged", nil
	}
	license.Reactivate()
	if err := s.licenses.Save(ctx, license); err != nil {
		return "", fmt.Errorf("save license: %w", err)
	}
	return "license reactivated", nil
}

// findBySubscription looks the license up by subscription, then by customer
func (s *StripeWebhookService) findBySubscription(ctx context.Context, subscriptionID, customerID string) (*licensing.License, error) {
	if subscriptionID != "" {
		license, err := s.licenses.FindByStripeSubscriptionID(ctx, subscriptionID)
		if err == nil {
			return license, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	if customerID != "" {
		return s.licenses.FindByStripeCustomerID(ctx, customerID)
	}
	return nil, shared.ErrNotFound
}

// planFor resolves the plan from the first priced item, then from metadata
func (s *StripeWebhookService) planFor(sub *stripe.Subscription) (licensing.Plan, bool) {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			if plan, ok := s.pricePlans[item.Price.ID]; ok {
				return plan, true
			}
		}
	}
	if plan, err := licensing.ParsePlan(sub.Metadata[MetadataPlan]); err == nil {
		return plan, true
	}
	return "", false
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func subscriptionID(sub *stripe.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.ID
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Parent == nil || inv.Parent.SubscriptionDetails == nil {
		return ""
	}
	return subscriptionID(inv.Parent.SubscriptionDetails.Subscription)
}
