package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/aayushsingh7/vidchemy/internal/models"
	"github.com/aayushsingh7/vidchemy/internal/queue"
)

// Handler runs the pipeline for one dispatch message. A nil return
// acknowledges the message; an error leaves it unacked for redelivery.
type Handler func(ctx context.Context, msg models.DispatchMessage) error

// Fetcher is the slice of the JetStream pull subscription the pool needs.
type Fetcher interface {
	Fetch(batch int, opts ...nats.PullOpt) ([]*nats.Msg, error)
}

// Pool is a fixed set of workers pulling dispatch messages. The pool size is
// the concurrency ceiling for pipeline executions: no matter how deep the
// queue gets, at most MaxWorkers jobs hit the analysis collaborators at once.
type Pool struct {
	MaxWorkers int

	sub     Fetcher
	handler Handler
	log     *logrus.Logger
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a new Pool.
func NewPool(maxWorkers int, sub Fetcher, handler Handler, log *logrus.Logger) *Pool {
	return &Pool{
		MaxWorkers: maxWorkers,
		sub:        sub,
		handler:    handler,
		log:        log,
		quit:       make(chan struct{}),
	}
}

// Run starts the workers.
func (p *Pool) Run() {
	p.log.Infof("Worker pool starting with %d workers", p.MaxWorkers)
	for i := 1; i <= p.MaxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish. Messages
// still being processed at shutdown stay unacked and get redelivered.
func (p *Pool) Stop() {
	p.log.Info("Worker pool: initiating shutdown")
	close(p.quit)
	p.wg.Wait()
	p.log.Info("Worker pool: all workers have stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			p.log.Infof("Worker %d: stopping", id)
			return
		default:
		}

		msgs, err := p.sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			p.log.WithField("error", err.Error()).Warnf("Worker %d: fetch failed", id)
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			p.process(id, m)
		}
	}
}

func (p *Pool) process(id int, m *nats.Msg) {
	msg, err := queue.DecodeMessage(m)
	if err != nil {
		// A payload that cannot parse will never succeed; terminate it
		// instead of letting it bounce forever.
		p.log.WithField("error", err.Error()).Errorf("Worker %d: discarding malformed message", id)
		_ = m.Term()
		return
	}

	entry := p.log.WithFields(logrus.Fields{"worker": id, "job_id": msg.JobID})
	started := entry
	if msg.HappenedAt > 0 {
		wait := time.Since(time.Unix(msg.HappenedAt, 0)).Round(time.Millisecond)
		started = entry.WithField("queue_wait", wait.String())
	}
	started.Info("Started job")

	if err := p.handler(context.Background(), msg); err != nil {
		// The executor only errors when it could not even record a terminal
		// state. Leave the message unacked so the broker redelivers it.
		entry.WithField("error", err.Error()).Error("Job handler failed, leaving message for redelivery")
		return
	}

	if err := m.Ack(); err != nil {
		entry.WithField("error", err.Error()).Warn("Failed to ack message")
	}
	entry.Info("Finished job")
}
