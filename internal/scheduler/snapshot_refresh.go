package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/prismapp/prism/internal/modules/valuation"
)

// SnapshotRefreshJob recomputes the valuation series and rewrites the disk
// cache so reads after a restart are served without a full reconstruction.
type SnapshotRefreshJob struct {
	valuation *valuation.Service
	log       zerolog.Logger
}

// NewSnapshotRefreshJob creates a snapshot refresh job
func NewSnapshotRefreshJob(v *valuation.Service, log zerolog.Logger) *SnapshotRefreshJob {
	return &SnapshotRefreshJob{
		valuation: v,
		log:       log.With().Str("job", "snapshot_refresh").Logger(),
	}
}

// Name returns the job name
func (j *SnapshotRefreshJob) Name() string {
	return "snapshot_refresh"
}

// Run refreshes the cached valuation series
func (j *SnapshotRefreshJob) Run() error {
	series, err := j.valuation.RefreshCache()
	if err != nil {
		return err
	}

	j.log.Info().
		Int("points", len(series.Points)).
		Int("coverage_gaps", len(series.CoverageGaps)).
		Msg("Valuation cache refreshed")

	return nil
}
