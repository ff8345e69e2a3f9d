package ingest

import (
	"context"
	"errors"
	"time"

	"mangashelf/pkg/logging"
)

// Schedule runs ingestion every interval until ctx ends. Ticks that land
// while a manual run is active are skipped.
func (s *Service) Schedule(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logging.Info().Dur("interval", interval).Msg("periodic ingestion enabled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := s.Run(ctx)
			switch {
			case errors.Is(err, ErrRunInProgress):
				logging.Debug().Msg("scheduled ingestion skipped, run in progress")
			case err != nil:
				logging.Error().Err(err).Msg("scheduled ingestion failed")
			default:
				logging.Info().Str("run_id", run.ID).Int("new_volumes", run.NewVolumes()).Msg("scheduled ingestion done")
			}
		}
	}
}
