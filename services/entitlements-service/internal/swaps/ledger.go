package swaps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/budradar/budradar/libs/db"
	"github.com/budradar/budradar/services/entitlements-service/internal/outbox"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

const EventSwapRecorded = "entitlements.swap.recorded.v1"

// PgLedger implements Ledger on Postgres. The quota consumption, the swap row
// and the outbox event commit in one transaction.
type PgLedger struct {
	pool   *db.Pool
	repo   *storage.Repository
	outbox *outbox.Repository
}

func NewPgLedger(pool *db.Pool, repo *storage.Repository, outboxRepo *outbox.Repository) *PgLedger {
	return &PgLedger{pool: pool, repo: repo, outbox: outboxRepo}
}

func (l *PgLedger) ActiveSubscription(ctx context.Context, orgID string) (string, []string, bool, error) {
	sub, err := l.repo.GetSubscription(ctx, orgID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, err
	}
	if sub.Status != "active" && sub.Status != "trialing" {
		return "", nil, false, nil
	}
	return sub.Plan, sub.Addons, true, nil
}

func (l *PgLedger) RecordSwap(ctx context.Context, swap storage.Swap, month time.Time, limit int, eventPayload []byte) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := l.repo.EnsureUsageRow(ctx, tx, swap.OrgID, month); err != nil {
		return fmt.Errorf("ensure usage row: %w", err)
	}
	consumed, err := l.repo.TryConsumeSwap(ctx, tx, swap.OrgID, month, limit)
	if err != nil {
		return fmt.Errorf("consume swap slot: %w", err)
	}
	if !consumed {
		return ErrQuotaExhausted
	}
	if err := l.repo.InsertSwap(ctx, tx, swap); err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	if err := l.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "swap",
		AggregateID:   swap.ID,
		EventType:     EventSwapRecorded,
		Payload:       eventPayload,
	}); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return tx.Commit(ctx)
}
