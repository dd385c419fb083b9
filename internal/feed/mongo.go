package feed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// ChangeChannel is the Redis pub/sub channel that carries "something
// changed for this user" signals. Writers publish to it after every
// message insert or read receipt.
func ChangeChannel(prefix, userID string) string {
	return fmt.Sprintf("%s:changed:%s", prefix, userID)
}

// SnapshotFeed delivers, on subscribe and again after every change
// signal for the user, the current matching message set: a query on
// the messages collection scoped by participant equality and sorted
// timestamp descending. This mirrors the push-style live query the
// inbox consumer expects, with Mongo holding the data and Redis
// carrying the change signal.
type SnapshotFeed struct {
	messages *mongo.Collection
	rdb      *redis.Client
	prefix   string
	limit    int64
	log      *zap.SugaredLogger
}

func NewSnapshotFeed(messages *mongo.Collection, rdb *redis.Client, prefix string, limit int64, log *zap.SugaredLogger) *SnapshotFeed {
	if limit <= 0 {
		limit = 500
	}
	return &SnapshotFeed{messages: messages, rdb: rdb, prefix: prefix, limit: limit, log: log}
}

func (f *SnapshotFeed) Subscribe(ctx context.Context, userID string) (*Stream, error) {
	sub := f.rdb.Subscribe(ctx, ChangeChannel(f.prefix, userID))
	// force the SUBSCRIBE onto the wire before the initial query so a
	// write racing the backfill still produces a signal
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe change channel: %w", err)
	}

	stream := NewStream(8)

	go func() {
		<-stream.Done()
		_ = sub.Close()
	}()

	go func() {
		if !f.deliverCurrent(ctx, userID, stream) {
			return
		}
		ch := sub.Channel()
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					stream.Fail(ErrClosed)
					return
				}
				if !f.deliverCurrent(ctx, userID, stream) {
					return
				}
			case <-stream.Done():
				return
			case <-ctx.Done():
				stream.Fail(ctx.Err())
				return
			}
		}
	}()

	return stream, nil
}

func (f *SnapshotFeed) deliverCurrent(ctx context.Context, userID string, stream *Stream) bool {
	batch, err := f.query(ctx, userID)
	if err != nil {
		f.log.Errorw("inbox feed query failed", "user_id", userID, "err", err)
		stream.Fail(err)
		return false
	}
	return stream.Deliver(batch)
}

func (f *SnapshotFeed) query(ctx context.Context, userID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"receiver_id": userID},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(f.limit)

	cur, err := f.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
