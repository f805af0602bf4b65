package tokengate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tokengate/tokengate/internal/metrics"
)

type mailJob struct {
	id  string
	msg MailMessage
}

// mailDispatcher decouples email delivery from the request cycle: Enqueue
// never blocks on SMTP, and a single worker drains the queue with bounded
// retry and backoff. When the queue is full the job is dropped and counted —
// token issuance must never depend on delivery.
type mailDispatcher struct {
	cfg       MailConfig
	sender    MailSender
	log       *slog.Logger
	ch        chan mailJob
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newMailDispatcher(cfg MailConfig, sender MailSender, log *slog.Logger) *mailDispatcher {
	if sender == nil {
		return nil
	}

	d := &mailDispatcher{
		cfg:    cfg,
		sender: sender,
		log:    log,
		ch:     make(chan mailJob, cfg.QueueSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *mailDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.ch:
			d.deliver(job)
		case <-d.done:
			for {
				select {
				case job := <-d.ch:
					d.deliver(job)
				default:
					return
				}
			}
		}
	}
}

func (d *mailDispatcher) deliver(job mailJob) {
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err := d.sender.Send(context.Background(), job.msg)
		if err == nil {
			metrics.MailDelivered.Inc()
			d.log.Info("mail delivered", "job", job.id, "attempt", attempt)
			return
		}

		d.log.Warn("mail delivery attempt failed", "job", job.id, "attempt", attempt, "err", err)
		if attempt < d.cfg.MaxAttempts {
			backoff := d.cfg.RetryBackoff * time.Duration(attempt)
			select {
			case <-time.After(backoff):
			case <-d.done:
				// Shutting down: one last immediate try happens on the next
				// loop iteration, then the job is abandoned.
			}
		}
	}

	metrics.MailFailed.Inc()
	d.log.Error("mail delivery abandoned", "job", job.id, "to", job.msg.To)
}

// Enqueue hands a message to the worker. It never blocks: a full queue drops
// the job and increments the drop counter.
func (d *mailDispatcher) Enqueue(msg MailMessage) {
	if d == nil || d.closed.Load() {
		return
	}

	job := mailJob{id: uuid.NewString(), msg: msg}

	select {
	case d.ch <- job:
		metrics.MailEnqueued.Inc()
	case <-d.done:
	default:
		d.dropped.Add(1)
		metrics.MailDropped.Inc()
	}
}

// Close drains outstanding jobs and stops the worker.
func (d *mailDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports jobs discarded because the queue was full.
func (d *mailDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
