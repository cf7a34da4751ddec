package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/budradar/budradar/libs/db"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// MonthOf truncates a timestamp to its UTC billing month. Usage counters are
// keyed (org_id, billing_month) and reset by key rollover, not by mutation.
func MonthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type Subscription struct {
	OrgID                string
	Plan                 string
	Addons               []string
	Status               string
	Provider             string
	StripeCustomerID     string
	StripeSubscriptionID string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	UpdatedAt            time.Time
}

func (r *Repository) UpsertSubscription(ctx context.Context, tx pgx.Tx, s Subscription) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (org_id, plan, addons, status, provider, stripe_customer_id, stripe_subscription_id, current_period_start, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id)
		DO UPDATE SET plan = EXCLUDED.plan,
		              addons = EXCLUDED.addons,
		              status = EXCLUDED.status,
		              provider = EXCLUDED.provider,
		              stripe_customer_id = EXCLUDED.stripe_customer_id,
		              stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		              current_period_start = EXCLUDED.current_period_start,
		              current_period_end = EXCLUDED.current_period_end,
		              updated_at = now()
	`, s.OrgID, s.Plan, s.Addons, s.Status, defaultIfEmpty(s.Provider, "local"), nullIfEmpty(s.StripeCustomerID), nullIfEmpty(s.StripeSubscriptionID), s.CurrentPeriodStart, s.CurrentPeriodEnd)
	return err
}

func (r *Repository) GetSubscription(ctx context.Context, orgID string) (Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx, `
		SELECT org_id::text, plan, addons, status, provider,
		       COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		       current_period_start, current_period_end, updated_at
		FROM subscriptions
		WHERE org_id = $1
	`, orgID))
}

func (r *Repository) GetSubscriptionForUpdate(ctx context.Context, tx pgx.Tx, orgID string) (Subscription, bool, error) {
	s, err := scanSubscription(tx.QueryRow(ctx, `
		SELECT org_id::text, plan, addons, status, provider,
		       COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		       current_period_start, current_period_end, updated_at
		FROM subscriptions
		WHERE org_id = $1
		FOR UPDATE
	`, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, false, nil
		}
		return Subscription{}, false, err
	}
	return s, true, nil
}

// ListStripeSubscriptionsForReconcile returns stale Stripe-managed rows,
// oldest first, for the self-healing reconcile loop.
func (r *Repository) ListStripeSubscriptionsForReconcile(ctx context.Context, limit int) ([]Subscription, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT org_id::text, plan, addons, status, provider,
		       COALESCE(stripe_customer_id, ''), COALESCE(stripe_subscription_id, ''),
		       current_period_start, current_period_end, updated_at
		FROM subscriptions
		WHERE provider = 'stripe' AND stripe_subscription_id IS NOT NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var s Subscription
	var cps *time.Time
	var cpe *time.Time
	err := row.Scan(&s.OrgID, &s.Plan, &s.Addons, &s.Status, &s.Provider, &s.StripeCustomerID, &s.StripeSubscriptionID, &cps, &cpe, &s.UpdatedAt)
	if err != nil {
		return Subscription{}, err
	}
	s.CurrentPeriodStart = cps
	s.CurrentPeriodEnd = cpe
	return s, nil
}

// Usage holds the per-month counters the engine reads to answer quota
// questions. It never writes them except through the consume helpers below.
type Usage struct {
	OrgID        string
	BillingMonth time.Time
	StoresUsed   int
	SeatsUsed    int
	AlertsUsed   int
	SwapsUsed    int
	UpdatedAt    time.Time
}

func (r *Repository) GetUsage(ctx context.Context, orgID string, month time.Time) (Usage, error) {
	var u Usage
	err := r.pool.QueryRow(ctx, `
		SELECT org_id::text, billing_month, stores_used, seats_used, alerts_used, swaps_used, updated_at
		FROM usage_counters
		WHERE org_id = $1 AND billing_month = $2
	`, orgID, month).Scan(&u.OrgID, &u.BillingMonth, &u.StoresUsed, &u.SeatsUsed, &u.AlertsUsed, &u.SwapsUsed, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// New billing month: counters implicitly zero.
			return Usage{OrgID: orgID, BillingMonth: month}, nil
		}
		return Usage{}, err
	}
	return u, nil
}

func (r *Repository) EnsureUsageRow(ctx context.Context, tx pgx.Tx, orgID string, month time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO usage_counters (org_id, billing_month)
		VALUES ($1, $2)
		ON CONFLICT (org_id, billing_month) DO NOTHING
	`, orgID, month)
	return err
}

// TryConsumeSwap is the quota gate: a single conditional update so that two
// concurrent swap requests cannot both take the last slot. Returns false when
// the counter is already at the limit (the caller maps that to
// quota-exhausted regardless of whether it lost a race or was simply out).
func (r *Repository) TryConsumeSwap(ctx context.Context, tx pgx.Tx, orgID string, month time.Time, limit int) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE usage_counters
		SET swaps_used = swaps_used + 1,
		    updated_at = now()
		WHERE org_id = $1 AND billing_month = $2 AND swaps_used < $3
	`, orgID, month, limit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const (
	SwapStatusPending = "pending"
	SwapStatusActive  = "active"
)

// Swap is a store substitution request. It counts against quota at request
// time but only takes effect at the next scheduled data refresh.
type Swap struct {
	ID          string
	OrgID       string
	FromStoreID string
	ToStoreID   string
	Status      string
	RequestedAt time.Time
	ActivateAt  time.Time
	ActivatedAt *time.Time
}

func (r *Repository) InsertSwap(ctx context.Context, tx pgx.Tx, s Swap) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO swaps (id, org_id, from_store_id, to_store_id, status, requested_at, activate_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.OrgID, s.FromStoreID, s.ToStoreID, s.Status, s.RequestedAt, s.ActivateAt)
	return err
}

// FetchDuePendingSwaps locks pending swaps whose activation time has passed.
// SKIP LOCKED keeps concurrent worker instances from double-activating.
func (r *Repository) FetchDuePendingSwaps(ctx context.Context, tx pgx.Tx, now time.Time, limit int) ([]Swap, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, org_id::text, from_store_id, to_store_id, status, requested_at, activate_at, activated_at
		FROM swaps
		WHERE status = 'pending' AND activate_at <= $1
		ORDER BY activate_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Swap
	for rows.Next() {
		var s Swap
		if err := rows.Scan(&s.ID, &s.OrgID, &s.FromStoreID, &s.ToStoreID, &s.Status, &s.RequestedAt, &s.ActivateAt, &s.ActivatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) MarkSwapsActive(ctx context.Context, tx pgx.Tx, ids []string, activatedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE swaps
		SET status = 'active',
		    activated_at = $2
		WHERE id = ANY($1)
	`, ids, activatedAt)
	return err
}

func (r *Repository) ListSwaps(ctx context.Context, orgID string, limit int) ([]Swap, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, org_id::text, from_store_id, to_store_id, status, requested_at, activate_at, activated_at
		FROM swaps
		WHERE org_id = $1
		ORDER BY requested_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Swap
	for rows.Next() {
		var s Swap
		if err := rows.Scan(&s.ID, &s.OrgID, &s.FromStoreID, &s.ToStoreID, &s.Status, &s.RequestedAt, &s.ActivateAt, &s.ActivatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, evt ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		// Webhook payloads should be well-formed JSON; anything else is a
		// hard failure, not an idempotency case.
		return err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}

type AuditEvent struct {
	EventType string
	ActorType string
	ActorID   string
	OrgID     string
	Metadata  []byte
}

func (r *Repository) InsertAuditEvent(ctx context.Context, tx pgx.Tx, evt AuditEvent) error {
	var payload any
	if len(evt.Metadata) == 0 {
		payload = map[string]any{}
	} else if err := json.Unmarshal(evt.Metadata, &payload); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (event_type, actor_type, actor_id, org_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.EventType, evt.ActorType, nullIfEmpty(evt.ActorID), nullIfEmpty(evt.OrgID), payload)
	return err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func defaultIfEmpty(s string, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
