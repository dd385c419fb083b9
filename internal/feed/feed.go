package feed

import (
	"context"
	"errors"
	"sync"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// ErrClosed is delivered on a stream's error channel when the
// underlying connection ends without a more specific cause.
var ErrClosed = errors.New("feed: stream closed")

// Feed is the live-message-feed collaborator. A subscription delivers
// batches of the current matching records for one participant, pushed
// again whenever the underlying set changes. Redelivery of
// already-seen messages is allowed; the consumer folds idempotently.
// Reconnect and backoff are the adapter's business. A delivery
// failure it cannot recover from is terminal and surfaces on Err.
type Feed interface {
	Subscribe(ctx context.Context, userID string) (*Stream, error)
}

// Stream is one live subscription's pipe: message batches, a terminal
// error channel, and a Close to tear the subscription down.
type Stream struct {
	batches chan []models.Message
	errs    chan error

	closeOnce sync.Once
	done      chan struct{}
}

func NewStream(buffer int) *Stream {
	return &Stream{
		batches: make(chan []models.Message, buffer),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
}

func (s *Stream) Batches() <-chan []models.Message { return s.batches }

// Err yields at most one terminal error; the stream is dead after.
func (s *Stream) Err() <-chan error { return s.errs }

// Close tears the stream down from the consumer side. Producers
// observe Done and stop.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Stream) Done() <-chan struct{} { return s.done }

// Deliver hands a batch to the consumer, reporting false once the
// stream is closed.
func (s *Stream) Deliver(batch []models.Message) bool {
	select {
	case s.batches <- batch:
		return true
	case <-s.done:
		return false
	}
}

// Fail reports a terminal error and closes the stream.
func (s *Stream) Fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
	s.Close()
}
