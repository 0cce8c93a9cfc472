package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/verimail/verimail/internal/api/metrics"
	"github.com/verimail/verimail/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
	sendTimeout    = 15 * time.Second
)

// Dispatcher delivers queued mail on a fixed set of workers, sharded by
// recipient so messages to one address keep their order. Delivery failures
// are logged and counted, never reported back to the enqueuing request.
type Dispatcher struct {
	workers  []chan ports.Mail
	notifier ports.Notifier
	log      zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, notifier ports.Notifier, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:  make([]chan ports.Mail, numWorkers),
		notifier: notifier,
		log:      log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Mail, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a message to the worker responsible for its recipient.
// Non-blocking up to channelBuffer capacity; when the shard is full the
// message is dropped rather than stalling the request path.
func (d *Dispatcher) Enqueue(m ports.Mail) {
	idx := d.shardIndex(m.To)
	select {
	case d.workers[idx] <- m:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.MailDroppedTotal.Inc()
		d.log.Warn().Str("to", m.To).Str("subject", m.Subject).Msg("mail queue full, message dropped")
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(to))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Mail) {
	worker := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			metrics.MailQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))

			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := d.notifier.Send(sendCtx, m)
			cancel()
			if err != nil {
				metrics.MailErrorsTotal.Inc()
				d.log.Error().Err(err).
					Str("to", m.To).
					Str("subject", m.Subject).
					Int("worker_id", id).
					Msg("mail delivery failed")
				continue
			}
			metrics.MailSentTotal.Inc()
		}
	}
}
