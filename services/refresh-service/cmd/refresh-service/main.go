package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/budradar/budradar/libs/config"
	"github.com/budradar/budradar/libs/db"
	"github.com/budradar/budradar/libs/httpx"
	"github.com/budradar/budradar/libs/kafkax"
	otelx "github.com/budradar/budradar/libs/otel"
	"github.com/budradar/budradar/libs/runtime"
	"github.com/budradar/budradar/services/refresh-service/internal/consumer"
	"github.com/budradar/budradar/services/refresh-service/internal/inbox"
	"github.com/budradar/budradar/services/refresh-service/internal/tracking"
)

func main() {
	service := config.String("SERVICE_NAME", "refresh-service")
	port, err := config.Port("PORT", "8086")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	inboxRepo := inbox.NewRepository(pool)
	trackingRepo := tracking.NewRepository(pool)

	swapConsumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "refresh-service"),
		Topic:   "entitlements.swap.activated.v1",
	}
	swapConsumer := consumer.New(logger, inboxRepo, swapConsumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			SwapID      string `json:"swap_id"`
			OrgID       string `json:"org_id"`
			FromStoreID string `json:"from_store_id"`
			ToStoreID   string `json:"to_store_id"`
			ActivatedAt string `json:"activated_at"`
		}

		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid swap payload", "err", err)
			return nil
		}
		if payload.OrgID == "" || payload.FromStoreID == "" || payload.ToStoreID == "" || payload.ActivatedAt == "" {
			logger.Error("missing swap fields", "swap_id", payload.SwapID)
			return nil
		}
		activatedAt, err := time.Parse(time.RFC3339, payload.ActivatedAt)
		if err != nil {
			logger.Error("invalid activated_at", "err", err)
			return nil
		}

		if err := trackingRepo.ApplySwap(ctx, payload.OrgID, payload.FromStoreID, payload.ToStoreID, activatedAt.UTC()); err != nil {
			logger.Error("failed to apply swap", "err", err, "swap_id", payload.SwapID)
			return err
		}

		logger.Info("tracked store swapped",
			"org_id", payload.OrgID,
			"swap_id", payload.SwapID,
			"from_store_id", payload.FromStoreID,
			"to_store_id", payload.ToStoreID,
		)
		return nil
	})
	go swapConsumer.Run(ctx)

	activatedConsumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "refresh-service"),
		Topic:   "billing.subscription.activated.v1",
	}
	activatedConsumer := consumer.New(logger, inboxRepo, activatedConsumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			OrgID        string `json:"org_id"`
			Plan         string `json:"plan"`
			MaxStores    int    `json:"max_stores"`
			MonthlySwaps int    `json:"monthly_swaps"`
		}

		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid subscription payload", "err", err)
			return nil
		}
		if payload.OrgID == "" || payload.Plan == "" {
			logger.Error("missing subscription fields")
			return nil
		}

		if err := trackingRepo.UpsertOrgEntitlements(ctx, tracking.OrgEntitlements{
			OrgID:        payload.OrgID,
			Plan:         payload.Plan,
			MaxStores:    payload.MaxStores,
			MonthlySwaps: payload.MonthlySwaps,
			Active:       true,
		}); err != nil {
			logger.Error("failed to update org entitlements", "err", err, "org_id", payload.OrgID)
			return err
		}

		logger.Info("org entitlements updated", "org_id", payload.OrgID, "plan", payload.Plan, "max_stores", payload.MaxStores)
		return nil
	})
	go activatedConsumer.Run(ctx)

	canceledConsumerCfg := consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "refresh-service"),
		Topic:   "billing.subscription.canceled.v1",
	}
	canceledConsumer := consumer.New(logger, inboxRepo, canceledConsumerCfg, func(ctx context.Context, msg kafka.Message) error {
		var payload struct {
			OrgID string `json:"org_id"`
		}

		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logger.Error("invalid cancellation payload", "err", err)
			return nil
		}
		if payload.OrgID == "" {
			logger.Error("missing cancellation fields")
			return nil
		}

		if err := trackingRepo.DeactivateOrg(ctx, payload.OrgID); err != nil {
			logger.Error("failed to deactivate org", "err", err, "org_id", payload.OrgID)
			return err
		}

		logger.Info("org deactivated", "org_id", payload.OrgID)
		return nil
	})
	go canceledConsumer.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/tracked-stores", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
		if orgID == "" {
			http.Error(w, "org_id is required", http.StatusBadRequest)
			return
		}
		stores, err := trackingRepo.ListTrackedStores(r.Context(), orgID)
		if err != nil {
			http.Error(w, "failed to list tracked stores", http.StatusInternalServerError)
			return
		}
		items := make([]map[string]any, 0, len(stores))
		for _, s := range stores {
			items = append(items, map[string]any{
				"store_id": s.StoreID,
				"added_at": s.AddedAt.UTC().Format(time.RFC3339),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"org_id": orgID,
			"stores": items,
		})
	})

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "refresh")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
