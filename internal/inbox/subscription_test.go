package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/inbox-service/internal/feed"
	"github.com/fathima-sithara/inbox-service/internal/metrics"
	"github.com/fathima-sithara/inbox-service/internal/logger"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

// fakeFeed hands out manually driven streams.
type fakeFeed struct {
	stream *feed.Stream
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{stream: feed.NewStream(8)}
}

func (f *fakeFeed) Subscribe(context.Context, string) (*feed.Stream, error) {
	return f.stream, nil
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestSubscription(t *testing.T, dir *fakeDirectory) (*Subscription, *fakeFeed) {
	t.Helper()
	f := newFakeFeed()
	svc := NewService(f, dir, logger.Nop())
	sub, err := svc.Subscribe(context.Background(), "U")
	require.NoError(t, err)
	t.Cleanup(sub.Dispose)
	return sub, f
}

func TestSubscriptionFoldScenario(t *testing.T) {
	dir := newFakeDirectory()
	dir.users["A"] = &models.PartnerMetadata{ID: "A", DisplayName: "Alice", Role: models.RoleStudent}
	sub, f := newTestSubscription(t, dir)

	f.stream.Deliver([]models.Message{
		msg("m1", "A", "U", "hi", 100, false),
		msg("m2", "U", "A", "hey", 110, false),
	})

	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].Partner.DisplayName == "Alice"
	})
	s := sub.Snapshot()
	require.Equal(t, "A", s[0].PartnerID)
	require.Equal(t, "hey", s[0].LastMessageContent)
	require.Equal(t, time.UnixMilli(110).UTC(), s[0].LastMessageTimestamp)
	require.Equal(t, 1, s[0].UnreadCount)
	require.Equal(t, models.RoleStudent, s[0].Partner.Role)
}

func TestSubscriptionRedeliveryIsIdempotent(t *testing.T) {
	dir := newFakeDirectory()
	dir.users["A"] = &models.PartnerMetadata{ID: "A", DisplayName: "Alice"}
	sub, f := newTestSubscription(t, dir)

	batch := []models.Message{
		msg("m1", "A", "U", "hi", 100, false),
		msg("m2", "A", "U", "again", 120, false),
	}
	f.stream.Deliver(batch)
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].Partner.DisplayName == "Alice"
	})
	before := sub.Snapshot()

	// reconnect-style redelivery of the same records
	f.stream.Deliver(batch)
	f.stream.Deliver(batch[:1])
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].UnreadCount == before[0].UnreadCount
	})
	require.Equal(t, before, sub.Snapshot())
}

func TestSubscriptionDropsXORViolations(t *testing.T) {
	dir := newFakeDirectory()
	sub, f := newTestSubscription(t, dir)

	f.stream.Deliver([]models.Message{
		msg("bad1", "U", "U", "self", 100, false),  // sender == receiver
		msg("bad2", "A", "B", "other", 110, false), // neither side is U
		{},                                         // missing everything
		msg("ok", "A", "U", "fine", 120, false),
	})

	waitUntil(t, func() bool { return len(sub.Snapshot()) == 1 })
	s := sub.Snapshot()
	require.Equal(t, "A", s[0].PartnerID)
	require.Equal(t, "fine", s[0].LastMessageContent)
}

func TestSubscriptionViewedFlipClearsUnread(t *testing.T) {
	dir := newFakeDirectory()
	sub, f := newTestSubscription(t, dir)

	f.stream.Deliver([]models.Message{msg("m1", "A", "U", "hi", 100, false)})
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].UnreadCount == 1
	})

	f.stream.Deliver([]models.Message{msg("m1", "A", "U", "hi", 100, true)})
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].UnreadCount == 0
	})
}

func TestSubscriptionPlaceholderForMissingPartner(t *testing.T) {
	dir := newFakeDirectory() // knows nobody
	sub, f := newTestSubscription(t, dir)

	f.stream.Deliver([]models.Message{msg("m1", "ghost", "U", "boo", 100, false)})
	waitUntil(t, func() bool { return dir.calls.Load() >= 1 })
	waitUntil(t, func() bool { return len(sub.Snapshot()) == 1 })

	s := sub.Snapshot()
	require.Equal(t, "Unknown user", s[0].Partner.DisplayName)
	require.Equal(t, models.RoleUnknown, s[0].Partner.Role)

	// another reference to the same dangling id must not re-invoke
	// the directory
	f.stream.Deliver([]models.Message{msg("m2", "ghost", "U", "again", 200, false)})
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].LastMessageContent == "again"
	})
	require.EqualValues(t, 1, dir.calls.Load())
}

func TestSubscriptionTerminalFeedError(t *testing.T) {
	dir := newFakeDirectory()
	sub, f := newTestSubscription(t, dir)

	got := make(chan error, 1)
	sub.OnError(func(err error) { got <- err })

	want := errors.New("connection lost")
	f.stream.Fail(want)

	select {
	case err := <-got:
		require.ErrorIs(t, err, want)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal error not delivered")
	}
}

func TestSubscriptionErrorBeforeRegistration(t *testing.T) {
	dir := newFakeDirectory()
	sub, f := newTestSubscription(t, dir)

	want := errors.New("connection lost")
	f.stream.Fail(want)

	// let the consumer loop observe the failure before any callback
	// exists
	waitUntil(t, func() bool {
		sub.mu.Lock()
		defer sub.mu.Unlock()
		return sub.termErr != nil
	})

	got := make(chan error, 1)
	sub.OnError(func(err error) { got <- err })

	select {
	case err := <-got:
		require.ErrorIs(t, err, want)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal error latched before registration was never delivered")
	}

	// the error is delivered once, not on every registration
	again := make(chan error, 1)
	sub.OnError(func(err error) { again <- err })
	select {
	case <-again:
		t.Fatal("terminal error delivered twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishCountsOnlyDeliveredUpdates(t *testing.T) {
	dir := newFakeDirectory()
	dir.users["A"] = &models.PartnerMetadata{ID: "A", DisplayName: "Alice"}
	sub, f := newTestSubscription(t, dir)

	before := testutil.ToFloat64(metrics.UpdatesPublished)

	// no callback registered yet: the fold happens but nothing is
	// delivered, so the counter must not move
	f.stream.Deliver([]models.Message{msg("m1", "A", "U", "hi", 100, false)})
	waitUntil(t, func() bool {
		s := sub.Snapshot()
		return len(s) == 1 && s[0].Partner.DisplayName == "Alice"
	})
	require.Equal(t, before, testutil.ToFloat64(metrics.UpdatesPublished))

	updates := make(chan struct{}, 8)
	sub.OnUpdate(func([]models.ConversationSummary) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})

	f.stream.Deliver([]models.Message{msg("m2", "A", "U", "again", 200, false)})
	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("update not delivered")
	}
	waitUntil(t, func() bool {
		return testutil.ToFloat64(metrics.UpdatesPublished) > before
	})
}

func TestSubscriptionDispose(t *testing.T) {
	dir := newFakeDirectory()
	dir.users["A"] = &models.PartnerMetadata{ID: "A", DisplayName: "Alice"}
	sub, f := newTestSubscription(t, dir)

	f.stream.Deliver([]models.Message{msg("m1", "A", "U", "hi", 100, false)})
	waitUntil(t, func() bool { return len(sub.Snapshot()) == 1 })

	sub.Dispose()
	require.Nil(t, sub.Snapshot())

	// further deliveries are ignored without panicking
	f.stream.Deliver([]models.Message{msg("m2", "A", "U", "late", 200, false)})
	require.Nil(t, sub.Snapshot())

	sub.Dispose() // idempotent
}

func TestSubscriptionOnUpdateDeliversImmediately(t *testing.T) {
	dir := newFakeDirectory()
	sub, _ := newTestSubscription(t, dir)

	got := make(chan []models.ConversationSummary, 1)
	sub.OnUpdate(func(s []models.ConversationSummary) {
		select {
		case got <- s:
		default:
		}
	})
	select {
	case s := <-got:
		require.Empty(t, s)
	case <-time.After(time.Second):
		t.Fatal("initial view not delivered")
	}
}
