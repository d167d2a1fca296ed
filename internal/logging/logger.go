package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithDetection returns a logger with detection-run context fields attached.
// Use this for all logging within a detection run.
func WithDetection(runID, userID string) *slog.Logger {
	return slog.With(
		"run_id", runID,
		"user_id", userID,
	)
}

// WithJob returns a logger scoped to a background job.
func WithJob(job string) *slog.Logger {
	return slog.With("job", job)
}

// WithProposal returns a logger scoped to a specific proposal.
func WithProposal(logger *slog.Logger, proposalID, proposalType string) *slog.Logger {
	return logger.With(
		"proposal_id", proposalID,
		"proposal_type", proposalType,
	)
}
