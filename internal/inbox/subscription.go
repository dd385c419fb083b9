package inbox

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/directory"
	"github.com/fathima-sithara/inbox-service/internal/feed"
	"github.com/fathima-sithara/inbox-service/internal/metrics"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

// Service wires the feed and directory collaborators into inbox
// subscriptions. Collaborators are injected at construction; nothing
// here is process-global.
type Service struct {
	feed feed.Feed
	dir  directory.Directory
	log  *zap.SugaredLogger
}

func NewService(f feed.Feed, d directory.Directory, log *zap.SugaredLogger) *Service {
	return &Service{feed: f, dir: d, log: log}
}

// UpdateFunc receives the full summary view after every fold that
// changed it. ErrorFunc receives the single terminal feed error, if
// one occurs; the subscription is dead afterwards and the consumer
// must subscribe again.
type (
	UpdateFunc func(summaries []models.ConversationSummary)
	ErrorFunc  func(err error)
)

// Subscription is one user's live inbox: a consumer loop folding feed
// batches, a per-session resolver cache, and callback delivery.
type Subscription struct {
	userID string

	agg    *Aggregator
	res    *Resolver
	ing    *Ingestor
	stream *feed.Stream
	cancel context.CancelFunc
	log    *zap.SugaredLogger

	mu       sync.Mutex
	onUpdate UpdateFunc
	onError  ErrorFunc
	termErr  error // latched terminal feed error
	errSent  bool
	disposed bool

	done chan struct{}
}

// Subscribe opens the live feed for userID and starts the consumer
// loop. All aggregation state lives inside the returned Subscription
// and dies with Dispose.
func (s *Service) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	runCtx, cancel := context.WithCancel(ctx)

	stream, err := s.feed.Subscribe(runCtx, userID)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{
		userID: userID,
		agg:    NewAggregator(userID),
		res:    NewResolver(s.dir, s.log),
		stream: stream,
		cancel: cancel,
		log:    s.log,
		done:   make(chan struct{}),
	}
	sub.ing = NewIngestor(userID, sub.agg, sub.res, s.log)
	sub.res.onResolved = func(string) { sub.publish() }

	metrics.ActiveSubscriptions.Inc()
	go sub.run(runCtx)
	return sub, nil
}

// SnapshotOnce aggregates an already-fetched batch without a live
// subscription, resolving partner metadata synchronously. Backs the
// pull-based inbox endpoint.
func (s *Service) SnapshotOnce(ctx context.Context, userID string, batch []models.Message) []models.ConversationSummary {
	agg := NewAggregator(userID)
	res := NewResolver(s.dir, s.log)
	NewIngestor(userID, agg, res, s.log).Apply(ctx, batch)

	summaries := agg.Snapshot()
	for i := range summaries {
		meta, err := res.Resolve(ctx, summaries[i].PartnerID)
		if err != nil || meta == nil {
			summaries[i].Partner = models.PlaceholderMetadata(summaries[i].PartnerID)
			continue
		}
		summaries[i].Partner = meta
	}
	return summaries
}

// run is the single consumer: batches strictly in delivery order,
// one publish per batch, terminal error forwarded once.
func (sub *Subscription) run(ctx context.Context) {
	defer metrics.ActiveSubscriptions.Dec()
	for {
		select {
		case batch := <-sub.stream.Batches():
			sub.ing.Apply(ctx, batch)
			sub.publish()
		case err := <-sub.stream.Err():
			sub.log.Errorw("inbox feed terminated", "user_id", sub.userID, "err", err)
			sub.fail(err)
			return
		case <-sub.done:
			return
		}
	}
}

// OnUpdate registers the summaries callback and immediately delivers
// the current view so late registrants do not wait for the next fold.
func (sub *Subscription) OnUpdate(fn UpdateFunc) {
	sub.mu.Lock()
	sub.onUpdate = fn
	disposed := sub.disposed
	sub.mu.Unlock()
	if fn != nil && !disposed {
		fn(sub.Snapshot())
	}
}

// OnError registers the terminal-error callback. A feed failure that
// already happened is delivered immediately, so registering after
// Subscribe cannot lose it.
func (sub *Subscription) OnError(fn ErrorFunc) {
	sub.mu.Lock()
	sub.onError = fn
	var deliver error
	if fn != nil && sub.termErr != nil && !sub.errSent && !sub.disposed {
		sub.errSent = true
		deliver = sub.termErr
	}
	sub.mu.Unlock()
	if deliver != nil {
		fn(deliver)
	}
}

// Snapshot projects the current summaries with resolved partner
// metadata joined in; unresolved or missing partners render as
// placeholders. Pure read, callable from any goroutine.
func (sub *Subscription) Snapshot() []models.ConversationSummary {
	sub.mu.Lock()
	if sub.disposed {
		sub.mu.Unlock()
		return nil
	}
	sub.mu.Unlock()

	summaries := sub.agg.Snapshot()
	for i := range summaries {
		if meta := sub.res.Cached(summaries[i].PartnerID); meta != nil {
			summaries[i].Partner = meta
		} else {
			summaries[i].Partner = models.PlaceholderMetadata(summaries[i].PartnerID)
		}
	}
	return summaries
}

// Dispose tears the subscription down: feed unsubscribed, in-flight
// lookups left to finish into a discarded cache, all fold state gone.
// Idempotent.
func (sub *Subscription) Dispose() {
	sub.mu.Lock()
	if sub.disposed {
		sub.mu.Unlock()
		return
	}
	sub.disposed = true
	sub.mu.Unlock()

	close(sub.done)
	sub.cancel()
	sub.stream.Close()
	sub.agg.Reset()
	sub.res.Reset()
}

func (sub *Subscription) publish() {
	sub.mu.Lock()
	fn := sub.onUpdate
	disposed := sub.disposed
	sub.mu.Unlock()
	if disposed {
		return
	}
	if fn != nil {
		fn(sub.Snapshot())
		metrics.UpdatesPublished.Inc()
	}
}

func (sub *Subscription) fail(err error) {
	sub.mu.Lock()
	sub.termErr = err
	fn := sub.onError
	deliver := fn != nil && !sub.errSent && !sub.disposed
	if deliver {
		sub.errSent = true
	}
	sub.mu.Unlock()
	if deliver {
		fn(err)
	}
}
