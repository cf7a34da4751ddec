package refresh

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/budradar/budradar/libs/db"
	"github.com/budradar/budradar/services/entitlements-service/internal/outbox"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

const EventSwapActivated = "entitlements.swap.activated.v1"

// Worker promotes due pending swaps to active at each refresh boundary.
// Rows are claimed with FOR UPDATE SKIP LOCKED so multiple replicas can run
// the loop without double-activating.
type Worker struct {
	pool      *db.Pool
	repo      *storage.Repository
	outbox    *outbox.Repository
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

func NewWorker(pool *db.Pool, repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Worker{
		pool:      pool,
		repo:      repo,
		outbox:    outboxRepo,
		logger:    logger,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("swap activation worker started", "interval", w.interval.String())
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("swap activation worker stopped")
			return
		case <-ticker.C:
			if err := w.activateDue(ctx, time.Now().UTC()); err != nil {
				w.logger.Error("swap activation pass failed", "error", err)
			}
		}
	}
}

type swapActivatedPayload struct {
	SwapID      string    `json:"swap_id"`
	OrgID       string    `json:"org_id"`
	FromStoreID string    `json:"from_store_id"`
	ToStoreID   string    `json:"to_store_id"`
	ActivatedAt time.Time `json:"activated_at"`
}

func (w *Worker) activateDue(ctx context.Context, now time.Time) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	due, err := w.repo.FetchDuePendingSwaps(ctx, tx, now, w.batchSize)
	if err != nil {
		return fmt.Errorf("fetch due swaps: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	ids := make([]string, 0, len(due))
	for _, s := range due {
		ids = append(ids, s.ID)
	}
	if err := w.repo.MarkSwapsActive(ctx, tx, ids, now); err != nil {
		return fmt.Errorf("mark swaps active: %w", err)
	}

	for _, s := range due {
		payload, err := json.Marshal(swapActivatedPayload{
			SwapID:      s.ID,
			OrgID:       s.OrgID,
			FromStoreID: s.FromStoreID,
			ToStoreID:   s.ToStoreID,
			ActivatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("marshal activation payload: %w", err)
		}
		if err := w.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "swap",
			AggregateID:   s.ID,
			EventType:     EventSwapActivated,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	w.logger.Info("swaps activated", "count", len(due))
	return nil
}
