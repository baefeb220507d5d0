package jobs

import "context"

// ExpirySweeper resolves pending review entries whose window has passed
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) error
}

// ReviewSweeper adapts the review expiry sweep to the JobProcessor
// interface so it runs on the shared worker loop.
type ReviewSweeper struct {
	sweeper ExpirySweeper
}

// NewReviewSweeper creates a new ReviewSweeper instance
func NewReviewSweeper(sweeper ExpirySweeper) *ReviewSweeper {
	return &ReviewSweeper{sweeper: sweeper}
}

// ProcessJobs implements the JobProcessor interface
func (s *ReviewSweeper) ProcessJobs(ctx context.Context) error {
	return s.sweeper.SweepExpired(ctx)
}
