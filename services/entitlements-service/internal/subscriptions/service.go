package subscriptions

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/budradar/budradar/services/entitlements-service/internal/entitlements"
	"github.com/budradar/budradar/services/entitlements-service/internal/outbox"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

const (
	EventSubscriptionActivated = "billing.subscription.activated.v1"
	EventSubscriptionCanceled  = "billing.subscription.canceled.v1"
)

// subscriptionStore is the slice of the storage repository the transitions
// need. An interface so tests can drive the state machine without a database.
type subscriptionStore interface {
	GetSubscriptionForUpdate(ctx context.Context, tx pgx.Tx, orgID string) (storage.Subscription, bool, error)
	UpsertSubscription(ctx context.Context, tx pgx.Tx, s storage.Subscription) error
}

type eventInserter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// Service encapsulates subscription state transitions and the side effects
// (outbox events). Keeping this out of HTTP handlers makes it reusable for
// webhook + reconciliation flows.
type Service struct {
	repo       subscriptionStore
	outboxRepo eventInserter
}

func New(repo subscriptionStore, outboxRepo eventInserter) *Service {
	return &Service{repo: repo, outboxRepo: outboxRepo}
}

// ApplyActivated upserts the org's subscription to the given plan and add-on
// set and emits an activation event, but only when the effective entitlements
// actually change. Provider ID updates alone shouldn't fan out.
func (s *Service) ApplyActivated(ctx context.Context, tx pgx.Tx, orgID, plan string, addons []string, activatedAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, orgID)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		OrgID:                orgID,
		Plan:                 plan,
		Addons:               addons,
		Status:               "active",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	if ok && existing.Status == "active" && existing.Plan == plan && sameAddons(existing.Addons, addons) {
		return nil
	}

	ent, err := entitlements.Compute(plan, addons)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"org_id":        orgID,
		"plan":          plan,
		"addons":        addons,
		"max_stores":    ent.MaxStores,
		"max_seats":     ent.MaxSeats,
		"monthly_swaps": ent.MonthlySwaps,
		"activated_at":  activatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "subscription",
		AggregateID:   orgID,
		EventType:     EventSubscriptionActivated,
		Payload:       payload,
	})
}

// ApplyCanceled marks the subscription canceled. The plan is kept on the row
// for bookkeeping; a canceled org has no entitlements until it reactivates.
func (s *Service) ApplyCanceled(ctx context.Context, tx pgx.Tx, orgID string, canceledAt time.Time, provider string, stripeCustomerID string, stripeSubscriptionID string, periodStart, periodEnd *time.Time) error {
	existing, ok, err := s.repo.GetSubscriptionForUpdate(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if !ok {
		// Nothing to cancel. Upserting here would fabricate a subscription
		// row with no plan behind it.
		return nil
	}

	plan := existing.Plan
	addons := existing.Addons
	if err := s.repo.UpsertSubscription(ctx, tx, storage.Subscription{
		OrgID:                orgID,
		Plan:                 plan,
		Addons:               addons,
		Status:               "canceled",
		Provider:             provider,
		StripeCustomerID:     stripeCustomerID,
		StripeSubscriptionID: stripeSubscriptionID,
		CurrentPeriodStart:   periodStart,
		CurrentPeriodEnd:     periodEnd,
	}); err != nil {
		return err
	}

	if existing.Status == "canceled" {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"org_id":      orgID,
		"plan":        plan,
		"canceled_at": canceledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	return s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "subscription",
		AggregateID:   orgID,
		EventType:     EventSubscriptionCanceled,
		Payload:       payload,
	})
}

func sameAddons(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
