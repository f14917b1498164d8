package cacheclient

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cachekey "github.com/always-cache/cacheclient/pkg/cache-key"
	"github.com/always-cache/cacheclient/pkg/metrics"
	"github.com/always-cache/cacheclient/pkg/workerpool"
	"github.com/always-cache/cacheclient/rfc9111"
)

// RevalidationTask is a background refresh of one stored response.
type RevalidationTask struct {
	ID  uuid.UUID
	Key string
	// Token returned by the store when the key was marked.
	Token     uint64
	CreatedAt time.Time
}

func newRevalidationTask(key string, token uint64, now time.Time) RevalidationTask {
	return RevalidationTask{
		ID:        uuid.New(),
		Key:       key,
		Token:     token,
		CreatedAt: now,
	}
}

// RevalidationScheduler runs revalidation tasks on a bounded worker pool.
// Tasks run with the scheduler's context, not the one of the request that
// triggered them.
type RevalidationScheduler struct {
	client *Client
	pool   *workerpool.Pool
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

type WorkerStats = workerpool.Stats

func newRevalidationScheduler(c *Client, cfg workerpool.Config) *RevalidationScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	log := c.log.With().Str("component", "revalidation").Logger()
	return &RevalidationScheduler{
		client: c,
		pool:   workerpool.New(cfg, log),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit queues the task without blocking. It returns false if the queue
// is full, in which case the task will not run.
func (s *RevalidationScheduler) Submit(task RevalidationTask) bool {
	return s.pool.Submit(func() { s.run(task) })
}

// Pending returns the number of tasks queued or running.
func (s *RevalidationScheduler) Pending() int {
	return s.pool.Pending()
}

func (s *RevalidationScheduler) Stats() WorkerStats {
	return s.pool.Stats()
}

// Close aborts running tasks and drops queued ones.
func (s *RevalidationScheduler) Close() {
	s.cancel()
	if dropped := s.pool.Close(); dropped > 0 {
		s.log.Debug().Int("dropped", dropped).Msg("Dropped revalidations")
	}
}

func (s *RevalidationScheduler) run(task RevalidationTask) {
	c := s.client
	log := s.log.With().Str("task", task.ID.String()).Str("key", task.Key).Logger()
	// the entry is back to idle whatever happens below
	defer func() {
		if err := c.store.EndRevalidation(task.Key, task.Token); err != nil {
			log.Error().Err(err).Msg("Could not clear revalidation flag")
		}
	}()

	outcome := s.revalidate(task, log)
	c.metrics.Revalidations.WithLabelValues(outcome).Inc()
	log.Debug().
		Str("outcome", outcome).
		Dur("delay", c.cfg.Now().Sub(task.CreatedAt)).
		Msg("Revalidated entry")
}

func (s *RevalidationScheduler) revalidate(task RevalidationTask, log zerolog.Logger) string {
	c := s.client
	req, err := cachekey.RequestFromKey(task.Key)
	if err != nil {
		log.Error().Err(err).Msg("Could not get request from key")
		return metrics.OutcomeFailed
	}
	req = req.WithContext(s.ctx)

	entry, found, err := c.store.Get(task.Key)
	if err != nil {
		log.Error().Err(err).Msg("Could not retrieve from cache")
	}
	conditional := found && rfc9111.AddValidators(req, entry.Header)

	res, err := c.fetch(s.ctx, req, pathAsync)
	if err != nil {
		log.Warn().Err(err).Msg("Could not revalidate entry")
		return metrics.OutcomeFailed
	}

	if conditional && res.statusCode == http.StatusNotModified {
		if c.put(freshen(entry, res, c.cfg.SharedCache)) != stored {
			return metrics.OutcomeFailed
		}
		return metrics.OutcomeValidated
	}
	switch c.storeResponse(req, task.Key, res) {
	case stored:
		return metrics.OutcomeUpdated
	case oversized:
		return metrics.OutcomeOversized
	case notStorable:
		return metrics.OutcomeNotStorable
	}
	return metrics.OutcomeFailed
}
