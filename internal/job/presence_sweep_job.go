package job

import (
	"time"

	"go.uber.org/zap"

	"presence-service/internal/presence"
)

// PresenceSweepJob evicts offline presence records once their retention has passed
type PresenceSweepJob struct {
	store     *presence.Store
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewPresenceSweepJob creates a new PresenceSweepJob instance
func NewPresenceSweepJob(store *presence.Store, retention time.Duration, logger *zap.Logger) *PresenceSweepJob {
	return &PresenceSweepJob{
		store:     store,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

// Run executes the sweep. Users with a live socket are never evicted.
func (j *PresenceSweepJob) Run() {
	cutoff := j.now().Add(-j.retention)

	evicted := j.store.EvictOffline(cutoff)
	if evicted == 0 {
		j.logger.Debug("No offline presence records to evict")
		return
	}

	j.logger.Info("Evicted offline presence records",
		zap.Int("count", evicted),
		zap.Time("cutoff", cutoff),
	)
}
