package task

import (
	"context"
	"fmt"
	"log/slog"
)

// EnrichmentPipeline is the entry point the signup flow uses to kick off
// the two-stage enrichment chain. It creates the geolocation task and
// hands it to the submitter; everything after that (retries, chaining
// the holiday task) happens in the background.
type EnrichmentPipeline struct {
	factory   *GeolocationTaskFactory
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewEnrichmentPipeline creates a new EnrichmentPipeline.
func NewEnrichmentPipeline(
	factory *GeolocationTaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) *EnrichmentPipeline {
	return &EnrichmentPipeline{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With("component", "enrichment_pipeline"),
	}
}

// EnqueueCreateGeolocation schedules stage one of the enrichment chain
// for a freshly signed-up user. Fire-and-forget from the caller's
// perspective: the signup response does not depend on the outcome.
func (p *EnrichmentPipeline) EnqueueCreateGeolocation(
	ctx context.Context,
	userID int64,
	ipAddress string,
	signupTimeUTC string,
) error {
	t, err := p.factory.CreateTask(userID, ipAddress, signupTimeUTC)
	if err != nil {
		return fmt.Errorf("failed to create geolocation task: %w", err)
	}

	if err := p.submitter.Submit(ctx, t); err != nil {
		return fmt.Errorf("failed to submit geolocation task: %w", err)
	}

	p.logger.Debug("enqueued geolocation task",
		"task_id", t.ID(),
		"user_id", userID)
	return nil
}
