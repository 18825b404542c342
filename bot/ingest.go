package bot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/callummance/betty/db"
	"github.com/callummance/betty/media"
	"github.com/callummance/betty/queue"
	"github.com/callummance/betty/telemetry"
	"github.com/callummance/betty/twitch"
	"github.com/sirupsen/logrus"
)

//ErrorClass says what to do with a message whose processing failed.
type ErrorClass int

const (
	//ErrorClassDrop means retrying cannot help, so the message is acknowledged.
	ErrorClassDrop ErrorClass = iota
	//ErrorClassRetry means the failure is transient and the message goes back on the queue.
	ErrorClassRetry
)

func (ec ErrorClass) String() string {
	if ec == ErrorClassRetry {
		return "retry"
	}
	return "drop"
}

//Classify maps a processing error onto an ErrorClass. Unrecognized errors are retried.
func Classify(err error) ErrorClass {
	var (
		persistenceErr *db.PersistenceError
		uploadErr      *media.UploadError
	)
	switch {
	case twitch.IsMalformed(err), twitch.IsNotFound(err):
		return ErrorClassDrop
	case twitch.IsTransient(err), errors.As(err, &persistenceErr), errors.As(err, &uploadErr):
		return ErrorClassRetry
	default:
		return ErrorClassRetry
	}
}

//drainQueue keeps processing batches until the queue returns less than a full batch. It stops as soon as a
//message was requeued, so a transient failure is retried on the next tick rather than straight away.
func (b *Bot) drainQueue(ctx context.Context) error {
	for {
		n, requeued, err := b.pollBatch(ctx)
		if err != nil {
			return err
		}
		if requeued > 0 {
			logrus.Debugf("Requeued %d messages, leaving the rest of the queue for the next tick", requeued)
			return nil
		}
		if n < b.batchSize() || ctx.Err() != nil {
			return nil
		}
	}
}

func (b *Bot) batchSize() int {
	if b.opts.BatchSize < 1 {
		return 32
	}
	return b.opts.BatchSize
}

//PollQueue claims and processes one batch of inbound messages, returning how many were claimed.
func (b *Bot) PollQueue(ctx context.Context) (int, error) {
	n, _, err := b.pollBatch(ctx)
	return n, err
}

func (b *Bot) pollBatch(ctx context.Context) (claimed, requeued int, err error) {
	deliveries, err := b.Queue.Receive(ctx, b.batchSize())
	if err != nil {
		return 0, 0, err
	}
	if len(deliveries) > 0 {
		requeued = b.ProcessBatch(ctx, deliveries)
	}
	return len(deliveries), requeued, nil
}

type pendingEvent struct {
	delivery queue.Delivery
	event    *twitch.Event
}

//ProcessBatch handles a batch of deliveries and returns how many were put back on the queue. Messages for the
//same streamer run in arrival order; different streamers run concurrently.
func (b *Bot) ProcessBatch(ctx context.Context, deliveries []queue.Delivery) int {
	var order []string
	groups := make(map[string][]pendingEvent)
	for _, d := range deliveries {
		ev, err := twitch.NormalizeEvent(d.Message.QueryItems, d.Message.RequestBody)
		if err != nil {
			logrus.Warnf("Dropping message %v: %v", d.Message.ID, err)
			b.ack(ctx, d, "malformed")
			continue
		}
		if ev.Kind != twitch.EventStream {
			logrus.Infof("Ignoring message %v with unknown callback kind", d.Message.ID)
			b.ack(ctx, d, "ignored")
			continue
		}
		if _, ok := groups[ev.UserID]; !ok {
			order = append(order, ev.UserID)
		}
		groups[ev.UserID] = append(groups[ev.UserID], pendingEvent{delivery: d, event: ev})
	}

	var (
		wg       sync.WaitGroup
		requeued atomic.Int32
	)
	for _, id := range order {
		group := groups[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range group {
				if b.handleDelivery(ctx, p) {
					requeued.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	return int(requeued.Load())
}

//handleDelivery reconciles one message and reports whether it was requeued.
func (b *Bot) handleDelivery(ctx context.Context, p pendingEvent) bool {
	ctx = telemetry.WithCorrelation(ctx, p.delivery.Message.ID)
	log := telemetry.Logger(ctx).WithFields(logrus.Fields{"streamer_id": p.event.UserID, "op": "ingest"})

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("Reconciliation panicked: %v", r)
				err = errors.New("reconciliation panicked")
			}
		}()
		_, err = b.Reconcile(ctx, p.event.UserID)
		return err
	}()
	if err == nil {
		b.ack(ctx, p.delivery, "processed")
		return false
	}

	class := Classify(err)
	switch {
	case class == ErrorClassDrop:
		log.Warnf("Dropping message after non-retryable error: %v", err)
		b.ack(ctx, p.delivery, "dropped")
	case p.delivery.Message.Attempts+1 >= b.opts.MaxAttempts:
		log.Errorf("Giving up on message after %d attempts: %v", p.delivery.Message.Attempts+1, err)
		b.ack(ctx, p.delivery, "exhausted")
	default:
		log.Warnf("Requeueing message after transient error: %v", err)
		if qerr := b.Queue.Requeue(ctx, p.delivery); qerr != nil {
			log.Errorf("Failed to requeue message: %v", qerr)
			return false
		}
		telemetry.CountQueueMessage("requeued")
		return true
	}
	return false
}

func (b *Bot) ack(ctx context.Context, d queue.Delivery, outcome string) {
	if err := b.Queue.Ack(ctx, d); err != nil {
		logrus.Errorf("Failed to acknowledge message %v: %v", d.Message.ID, err)
		return
	}
	telemetry.CountQueueMessage(outcome)
}
