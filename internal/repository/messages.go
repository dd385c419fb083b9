package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/feed"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

// MessageRepository persists messages and signals both participants'
// live feeds after every write so their inbox views re-deliver.
type MessageRepository struct {
	coll   *mongo.Collection
	rdb    *redis.Client
	prefix string
	log    *zap.SugaredLogger
}

func NewMessageRepository(coll *mongo.Collection, rdb *redis.Client, prefix string, log *zap.SugaredLogger) *MessageRepository {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("sender_ts_idx"),
	}
	ix2 := mongo.IndexModel{
		Keys:    bson.D{{Key: "receiver_id", Value: 1}, {Key: "timestamp", Value: -1}},
		Options: options.Index().SetName("receiver_ts_idx"),
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{ix, ix2})
	return &MessageRepository{coll: coll, rdb: rdb, prefix: prefix, log: log}
}

func (r *MessageRepository) Insert(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	m := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Viewed:     false,
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return nil, err
	}
	r.notify(ctx, m.SenderID, m.ReceiverID)
	return m, nil
}

// MarkViewed flips the viewed flag. Only the receiver may mark a
// message viewed; a wrong caller gets ErrNotFound, same as a missing
// id, so the endpoint does not leak which is which.
func (r *MessageRepository) MarkViewed(ctx context.Context, messageID, userID string) error {
	var m models.Message
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID, "receiver_id": userID},
		bson.M{"$set": bson.M{"viewed": true}},
	).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	r.notify(ctx, m.SenderID, m.ReceiverID)
	return nil
}

// ListByParticipant returns the user's current matching message set,
// newest first. This is the feed backfill query and the pull-based
// inbox source.
func (r *MessageRepository) ListByParticipant(ctx context.Context, userID string, limit int64) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"receiver_id": userID},
	}}
	return r.find(ctx, filter, limit)
}

// History returns the two-party thread newest first.
func (r *MessageRepository) History(ctx context.Context, userID, partnerID string, limit int64) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID, "receiver_id": partnerID},
		bson.M{"sender_id": partnerID, "receiver_id": userID},
	}}
	return r.find(ctx, filter, limit)
}

func (r *MessageRepository) find(ctx context.Context, filter bson.M, limit int64) ([]models.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
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

func (r *MessageRepository) notify(ctx context.Context, userIDs ...string) {
	for _, id := range userIDs {
		ch := feed.ChangeChannel(r.prefix, id)
		if err := r.rdb.Publish(ctx, ch, "changed").Err(); err != nil {
			r.log.Warnw("change signal publish failed", "channel", ch, "err", err)
		}
	}
}
