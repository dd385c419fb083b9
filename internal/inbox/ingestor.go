package inbox

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/metrics"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

// Ingestor normalizes raw feed batches into aggregator folds. A
// record that does not involve the scoped user exactly once is
// dropped with a warning; everything else triggers a fold plus a
// partner-metadata prefetch.
type Ingestor struct {
	userID string
	agg    *Aggregator
	res    *Resolver
	log    *zap.SugaredLogger
}

func NewIngestor(userID string, agg *Aggregator, res *Resolver, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{userID: userID, agg: agg, res: res, log: log}
}

// Apply folds one batch. Per-record problems never fail the batch.
func (in *Ingestor) Apply(ctx context.Context, batch []models.Message) {
	for _, msg := range batch {
		partnerID, err := msg.PartnerOf(in.userID)
		if err != nil {
			reason := "not_participant"
			if errors.Is(err, models.ErrMalformedMessage) {
				reason = "malformed"
			}
			metrics.EventsDropped.WithLabelValues(reason).Inc()
			in.log.Warnw("dropping message event",
				"message_id", msg.ID, "reason", reason,
				"sender_id", msg.SenderID, "receiver_id", msg.ReceiverID)
			continue
		}
		in.agg.Ingest(partnerID, msg)
		in.res.Ensure(ctx, partnerID)
		metrics.EventsIngested.Inc()
	}
}
