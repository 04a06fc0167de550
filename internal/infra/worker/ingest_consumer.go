// File: internal/infra/worker/ingest_consumer.go
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"scalable-rag-engine/internal/domain/ports/adapter"
	"scalable-rag-engine/internal/infra/logging"
	"scalable-rag-engine/internal/infra/metrics"
	"scalable-rag-engine/internal/usecase"
)

// Decision is what the consumer did with a delivery.
type Decision string

const (
	DecisionAck        Decision = "ack"
	DecisionRequeue    Decision = "requeue"
	DecisionDeadLetter Decision = "dead_letter"
)

const (
	settleTimeout = 10 * time.Second
	errorPause    = time.Second

	defaultClaimRetries = 5
)

type ConsumerConfig struct {
	Concurrency   int
	ConsumerID    string
	MaxDeliveries int
	RequeueDelay  time.Duration
	// MaxClaimRetries bounds requeues of tasks whose claim write failed.
	MaxClaimRetries int
}

// Consumer pulls process_url_task deliveries and runs the ingestion pipeline
// for each one.
type Consumer struct {
	queue    adapter.TaskQueue
	pipeline usecase.IngestionUseCase
	cfg      ConsumerConfig
	pool     *Pool
	log      *zerolog.Logger

	sleep func(ctx context.Context, d time.Duration)
}

func NewConsumer(queue adapter.TaskQueue, pipeline usecase.IngestionUseCase, cfg ConsumerConfig, logger *zerolog.Logger) *Consumer {
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 1
	}
	if cfg.ConsumerID == "" {
		cfg.ConsumerID = "worker"
	}
	if cfg.MaxClaimRetries <= 0 {
		cfg.MaxClaimRetries = defaultClaimRetries
	}
	if logger == nil {
		logger = logging.Nop()
	}
	l := logger.With().Str("component", "consumer").Str("consumer", cfg.ConsumerID).Logger()
	return &Consumer{
		queue:    queue,
		pipeline: pipeline,
		cfg:      cfg,
		pool:     NewPool(cfg.Concurrency, &l),
		log:      &l,
		sleep:    sleepCtx,
	}
}

// Run returns this consumer's in-flight deliveries to the queue, then
// consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	n, err := c.queue.RecoverInFlight(ctx, c.cfg.ConsumerID)
	if err != nil {
		return err
	}
	if n > 0 {
		c.log.Warn().Int("recovered", n).Msg("requeued unfinished deliveries")
	}
	c.log.Info().Int("workers", c.pool.Size()).Msg("consumer started")
	err = c.pool.Run(ctx, c.loop)
	c.log.Info().Msg("consumer stopped")
	return err
}

func (c *Consumer) loop(ctx context.Context, worker int) error {
	for ctx.Err() == nil {
		d, err := c.queue.Dequeue(ctx, c.cfg.ConsumerID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.log.Error().Err(err).Int("worker", worker).Msg("dequeue failed")
			c.sleep(ctx, errorPause)
			continue
		}
		if d == nil {
			continue
		}
		c.Handle(ctx, d)
	}
	return nil
}

// Handle runs one delivery to completion and settles it on the queue.
func (c *Consumer) Handle(ctx context.Context, d *adapter.Delivery) Decision {
	ctx = logging.WithTaskID(ctx, d.Task.ID)
	log := logging.With(ctx, c.log)

	jobID, url, err := d.Task.URLArgs()
	if err != nil {
		log.Error().Err(err).Str("payload", logging.Preview(d.Raw, 200)).Msg("malformed task")
		return c.settle(ctx, d, DecisionDeadLetter, err.Error())
	}

	ctx = logging.WithJobID(ctx, jobID)
	log = logging.With(ctx, c.log)
	log.Info().Str("url", url).Int("deliveries", d.Task.Deliveries).Msg("processing task")

	res := c.pipeline.Process(ctx, jobID, url)
	switch res.Kind {
	case usecase.FailureNone:
		log.Info().Int("chunks", res.Chunks).Msg("task done")
		return c.settle(ctx, d, DecisionAck, "")
	case usecase.FailureNotFound, usecase.FailureDuplicate:
		log.Warn().Err(res.Err).Str("kind", string(res.Kind)).Msg("task dropped")
		return c.settle(ctx, d, DecisionAck, "")
	case usecase.FailureBusy:
		log.Info().Dur("delay", c.cfg.RequeueDelay).Msg("job held elsewhere, requeueing")
		c.sleep(ctx, c.cfg.RequeueDelay)
		return c.settle(ctx, d, DecisionRequeue, "")
	case usecase.FailureClaim:
		if d.Task.ClaimRetries < c.cfg.MaxClaimRetries {
			log.Warn().Err(res.Err).Int("claim_retries", d.Task.ClaimRetries).Msg("claim failed, requeueing")
			c.sleep(ctx, c.cfg.RequeueDelay)
			d.Task.ClaimRetries++
			return c.settle(ctx, d, DecisionRequeue, "")
		}
	}

	log.Error().Err(res.Err).Str("kind", string(res.Kind)).Msg("task failed")
	// claim retries are counted apart from the delivery budget
	if d.Task.Deliveries-d.Task.ClaimRetries+1 < c.cfg.MaxDeliveries {
		return c.settle(ctx, d, DecisionRequeue, "")
	}
	reason := string(res.Kind)
	if res.Err != nil {
		reason += ": " + res.Err.Error()
	}
	return c.settle(ctx, d, DecisionDeadLetter, reason)
}

// settle runs on a detached context so shutdown does not strand a delivery
// in the processing list.
func (c *Consumer) settle(ctx context.Context, d *adapter.Delivery, dec Decision, reason string) Decision {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	var err error
	switch dec {
	case DecisionAck:
		err = c.queue.Ack(sctx, d)
	case DecisionRequeue:
		err = c.queue.Requeue(sctx, d)
	case DecisionDeadLetter:
		err = c.queue.DeadLetter(sctx, d, reason)
	}
	if err != nil {
		logging.With(ctx, c.log).Error().Err(err).Str("decision", string(dec)).Msg("settle failed")
	}
	metrics.IncTask(string(dec))
	return dec
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
