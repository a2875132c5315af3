package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"streamhub/internal/domain"
)

// Noop logs broadcast calls instead of making them. Used when BROADCAST_PROVIDER=noop.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) CreateBroadcast(ctx context.Context, _ domain.Broadcast, _ string) (string, error) {
	id := uuid.NewString()
	n.Logger.DebugContext(ctx, "broadcast noop", slog.String("op", "create"), slog.String("broadcast_id", id))
	return id, nil
}

func (n Noop) PatchBroadcast(ctx context.Context, broadcastID string, _ domain.BroadcastPatch, _ string) error {
	n.Logger.DebugContext(ctx, "broadcast noop", slog.String("op", "patch"), slog.String("broadcast_id", broadcastID))
	return nil
}

func (n Noop) DeleteBroadcast(ctx context.Context, broadcastID, _ string) error {
	n.Logger.DebugContext(ctx, "broadcast noop", slog.String("op", "delete"), slog.String("broadcast_id", broadcastID))
	return nil
}

func (n Noop) RescheduleBroadcast(ctx context.Context, broadcastID string, _, _ time.Time, _ string) error {
	n.Logger.DebugContext(ctx, "broadcast noop", slog.String("op", "reschedule"), slog.String("broadcast_id", broadcastID))
	return nil
}

func (n Noop) UpdateBroadcastVisibility(ctx context.Context, broadcastID string, _ domain.Visibility, _ string) error {
	n.Logger.DebugContext(ctx, "broadcast noop", slog.String("op", "visibility"), slog.String("broadcast_id", broadcastID))
	return nil
}
