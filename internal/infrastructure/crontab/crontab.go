package crontab

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/processing"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

const (
	// CronJobTimeout bounds each scheduled job execution.
	CronJobTimeout = 30 * time.Minute

	cacheCleanupSchedule = "0 3 * * *" // nightly at 03:00
	batchSchedule        = "0 2 * * *" // nightly at 02:00
)

// Crontab drives the scheduled jobs: the nightly batch pass (which also
// runs the Sunday weekly synthesis) and the semantic cache purge. Stream
// deployments pass a nil batch runner and only get the cache job.
type Crontab struct {
	ctab  *crontab.Crontab
	batch *processing.BatchRunner
	cache *semanticcache.Cache
}

func NewCrontab(batch *processing.BatchRunner, cache *semanticcache.Cache) *Crontab {
	return &Crontab{
		ctab:  crontab.New(),
		batch: batch,
		cache: cache,
	}
}

func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()

	if c.batch != nil {
		if err := c.addBatchJob(ctx, log); err != nil {
			return err
		}
	}

	if err := c.ctab.AddJob(cacheCleanupSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		if _, err := c.cache.CleanupExpired(jobCtx); err != nil {
			log.Error().Err(err).Msg("scheduled cache cleanup failed")
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add cache cleanup job")
	}

	log.Info().Msg("scheduled jobs registered")
	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

func (c *Crontab) addBatchJob(ctx context.Context, log zerolog.Logger) error {
	if err := c.ctab.AddJob(batchSchedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), CronJobTimeout)
		defer cancel()
		if _, err := c.batch.Run(jobCtx); err != nil {
			log.Error().Err(err).Msg("scheduled batch run failed")
		}
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add batch job")
	}
	return nil
}
