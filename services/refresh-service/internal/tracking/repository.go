package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/budradar/budradar/libs/db"
)

// Repository maintains the refresh-side projections: the entitlement
// snapshot used to size crawl batches, and the set of stores currently
// tracked for each org.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

type OrgEntitlements struct {
	OrgID        string
	Plan         string
	MaxStores    int
	MonthlySwaps int
	Active       bool
	UpdatedAt    time.Time
}

func (r *Repository) UpsertOrgEntitlements(ctx context.Context, e OrgEntitlements) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO org_entitlements (org_id, plan, max_stores, monthly_swaps, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (org_id)
		DO UPDATE SET plan = EXCLUDED.plan,
		              max_stores = EXCLUDED.max_stores,
		              monthly_swaps = EXCLUDED.monthly_swaps,
		              active = EXCLUDED.active,
		              updated_at = now()
	`, e.OrgID, e.Plan, e.MaxStores, e.MonthlySwaps, e.Active)
	return err
}

func (r *Repository) DeactivateOrg(ctx context.Context, orgID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE org_entitlements
		SET active = false, updated_at = now()
		WHERE org_id = $1
	`, orgID)
	return err
}

type TrackedStore struct {
	OrgID     string
	StoreID   string
	Active    bool
	AddedAt   time.Time
	RemovedAt *time.Time
}

// ApplySwap retires the outgoing store and starts tracking the incoming one
// in a single transaction, so a refresh run never sees both or neither.
func (r *Repository) ApplySwap(ctx context.Context, orgID, fromStoreID, toStoreID string, activatedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE tracked_stores
		SET active = false, removed_at = $3
		WHERE org_id = $1 AND store_id = $2 AND active
	`, orgID, fromStoreID, activatedAt); err != nil {
		return fmt.Errorf("retire store: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO tracked_stores (org_id, store_id, active, added_at)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (org_id, store_id)
		DO UPDATE SET active = true,
		              added_at = EXCLUDED.added_at,
		              removed_at = NULL
	`, orgID, toStoreID, activatedAt); err != nil {
		return fmt.Errorf("track store: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repository) ListTrackedStores(ctx context.Context, orgID string) ([]TrackedStore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT org_id::text, store_id, active, added_at, removed_at
		FROM tracked_stores
		WHERE org_id = $1 AND active
		ORDER BY added_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedStore
	for rows.Next() {
		var s TrackedStore
		if err := rows.Scan(&s.OrgID, &s.StoreID, &s.Active, &s.AddedAt, &s.RemovedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
