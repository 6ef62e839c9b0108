package engine

import (
	"context"
	"log/slog"

	"feedsync/internal/domain"
)

// LogNotifier surfaces notices through the log only. It is used when no
// broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "notices")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice domain.Notice) error {
	level := slog.LevelWarn
	if notice.BalanceAffecting {
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, notice.Message,
		"mutation_id", notice.MutationID,
		"actor_id", notice.ActorID,
		"entity", notice.Entity.String(),
		"reason", notice.Reason,
		"cause", notice.Cause,
	)
	return nil
}
