//go:build protogen

package grpcserver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"google.golang.org/grpc"

	entitlementsv1 "github.com/budradar/budradar/protos/gen/entitlements/v1"
	"github.com/budradar/budradar/services/entitlements-service/internal/entitlements"
	"github.com/budradar/budradar/services/entitlements-service/internal/storage"
)

type server struct {
	entitlementsv1.UnimplementedEntitlementsServiceServer
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, repo *storage.Repository) {
	entitlementsv1.RegisterEntitlementsServiceServer(grpcServer, &server{repo: repo})
}

// GetEntitlements resolves an org's computed limits for sibling services.
// Orgs without an active subscription get an all-zero response; callers
// treat that as "nothing allowed".
func (s *server) GetEntitlements(ctx context.Context, req *entitlementsv1.EntitlementsRequest) (*entitlementsv1.EntitlementsResponse, error) {
	var ent entitlements.Entitlements
	if s.repo != nil && req.GetOrgId() != "" {
		sub, err := s.repo.GetSubscription(ctx, req.GetOrgId())
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			// Keep the response stable: repo errors fall through to zero limits.
			sub = storage.Subscription{}
		}
		if sub.Status == "active" || sub.Status == "trialing" {
			if computed, err := entitlements.Compute(sub.Plan, sub.Addons); err == nil {
				ent = computed
			}
		}
	}
	return &entitlementsv1.EntitlementsResponse{
		Plan:         ent.Plan,
		MaxStores:    uint32(ent.MaxStores),
		MaxSeats:     uint32(ent.MaxSeats),
		MaxAlerts:    uint32(ent.MaxAlerts),
		MonthlySwaps: uint32(ent.MonthlySwaps),
		HasApi:       ent.HasAPI,
		HasWeeklyPdf: ent.HasWeeklyPDF,
		HasArchive:   ent.HasArchive,
	}, nil
}
