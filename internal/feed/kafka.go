package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// KafkaFeed tails the message-events topic and delivers each event
// involving the subscribed user as a single-message batch. Unlike the
// snapshot feed there is no backfill beyond the reader's start offset;
// deployments that need history pair it with an initial repository
// read. The kafka reader owns reconnection; an error it gives up on
// is terminal for the stream.
type KafkaFeed struct {
	brokers     []string
	topic       string
	groupPrefix string
	log         *zap.SugaredLogger
}

func NewKafkaFeed(brokers []string, topic, groupPrefix string, log *zap.SugaredLogger) *KafkaFeed {
	return &KafkaFeed{brokers: brokers, topic: topic, groupPrefix: groupPrefix, log: log}
}

// groupID names one subscription's consumer group. The uuid suffix
// keeps concurrent subscriptions for the same user (two tabs, two
// devices) in separate groups: members of one group split partitions
// between them, and every subscription must see the whole event flow.
// A fresh group per subscribe also means no committed offsets carry
// over to a re-subscribe.
func (f *KafkaFeed) groupID(userID string) string {
	return fmt.Sprintf("%s-%s-%s", f.groupPrefix, userID, uuid.NewString())
}

func (f *KafkaFeed) Subscribe(ctx context.Context, userID string) (*Stream, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  f.brokers,
		Topic:    f.topic,
		GroupID:  f.groupID(userID),
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	stream := NewStream(8)

	go func() {
		<-stream.Done()
		_ = reader.Close()
	}()

	go func() {
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				select {
				case <-stream.Done():
					return
				default:
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					stream.Fail(ErrClosed)
				} else {
					stream.Fail(err)
				}
				return
			}

			var m models.Message
			if err := json.Unmarshal(msg.Value, &m); err != nil {
				f.log.Warnw("skipping undecodable message event",
					"topic", f.topic, "offset", msg.Offset, "err", err)
				continue
			}
			if m.SenderID != userID && m.ReceiverID != userID {
				continue
			}
			if !stream.Deliver([]models.Message{m}) {
				return
			}
		}
	}()

	return stream, nil
}
