//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/budradar/budradar/libs/db"
)

// The gRPC surface needs the generated proto bindings. Build with
// -tags protogen after running code generation to enable it.
func startGrpcServer(_ context.Context, logger *slog.Logger, _ *db.Pool) error {
	logger.Info("grpc server disabled (build without protogen tag)")
	return nil
}
