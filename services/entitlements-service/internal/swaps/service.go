package swaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/budradar/budradar/services/entitlements-service/internal/entitlements"
	"github.com/budradar/budradar/services/entitlements-service/internal/refresh"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

var (
	// ErrQuotaExhausted means the org has no swap slots left this billing month.
	ErrQuotaExhausted = errors.New("swap quota exhausted")
	// ErrInvalidRequest means the swap request itself is malformed.
	ErrInvalidRequest = errors.New("invalid swap request")
)

// Ledger is the persistence contract for swap recording. RecordSwap must
// consume one quota slot and insert the swap atomically, returning
// ErrQuotaExhausted when usage has already reached the limit. Concurrent
// callers racing for the last slot must see exactly one success.
type Ledger interface {
	ActiveSubscription(ctx context.Context, orgID string) (plan string, addons []string, ok bool, err error)
	RecordSwap(ctx context.Context, swap storage.Swap, month time.Time, limit int, eventPayload []byte) error
}

type Service struct {
	ledger   Ledger
	schedule refresh.Schedule
	logger   *slog.Logger
}

func NewService(ledger Ledger, schedule refresh.Schedule, logger *slog.Logger) *Service {
	return &Service{ledger: ledger, schedule: schedule, logger: logger}
}

type swapRecordedPayload struct {
	SwapID      string    `json:"swap_id"`
	OrgID       string    `json:"org_id"`
	FromStoreID string    `json:"from_store_id"`
	ToStoreID   string    `json:"to_store_id"`
	RequestedAt time.Time `json:"requested_at"`
	ActivateAt  time.Time `json:"activate_at"`
}

// Record consumes one swap slot for the org and persists a pending swap that
// activates at the next data refresh. The quota check and the usage increment
// happen in a single conditional write, so two requests racing for the last
// slot cannot both succeed.
func (s *Service) Record(ctx context.Context, orgID, fromStoreID, toStoreID string, now time.Time) (storage.Swap, error) {
	if orgID == "" || fromStoreID == "" || toStoreID == "" {
		return storage.Swap{}, fmt.Errorf("%w: org_id, from_store_id and to_store_id are required", ErrInvalidRequest)
	}
	if fromStoreID == toStoreID {
		return storage.Swap{}, fmt.Errorf("%w: from_store_id and to_store_id must differ", ErrInvalidRequest)
	}

	plan, addons, ok, err := s.ledger.ActiveSubscription(ctx, orgID)
	if err != nil {
		return storage.Swap{}, fmt.Errorf("load subscription: %w", err)
	}
	if !ok {
		// No active subscription means a zero swap quota.
		return storage.Swap{}, ErrQuotaExhausted
	}
	ent, err := entitlements.Compute(plan, addons)
	if err != nil {
		return storage.Swap{}, fmt.Errorf("compute entitlements: %w", err)
	}

	swap := storage.Swap{
		ID:          uuid.NewString(),
		OrgID:       orgID,
		FromStoreID: fromStoreID,
		ToStoreID:   toStoreID,
		Status:      storage.SwapStatusPending,
		RequestedAt: now.UTC(),
		ActivateAt:  s.schedule.Next(now),
	}
	payload, err := json.Marshal(swapRecordedPayload{
		SwapID:      swap.ID,
		OrgID:       swap.OrgID,
		FromStoreID: swap.FromStoreID,
		ToStoreID:   swap.ToStoreID,
		RequestedAt: swap.RequestedAt,
		ActivateAt:  swap.ActivateAt,
	})
	if err != nil {
		return storage.Swap{}, fmt.Errorf("marshal swap payload: %w", err)
	}

	if err := s.ledger.RecordSwap(ctx, swap, storage.MonthOf(now), ent.MonthlySwaps, payload); err != nil {
		return storage.Swap{}, err
	}

	s.logger.Info("swap recorded",
		"org_id", orgID,
		"swap_id", swap.ID,
		"from_store_id", fromStoreID,
		"to_store_id", toStoreID,
		"activate_at", swap.ActivateAt,
	)
	return swap, nil
}
