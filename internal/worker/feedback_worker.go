// Package worker delivers queued classifier feedback.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"finsight/internal/amqp"
	"finsight/internal/classifier"
	"finsight/internal/log"
)

// StaleAfter is the age past which a queued correction is acknowledged
// without being delivered.
const StaleAfter = 7 * 24 * time.Hour

// Stats counts handled messages since start.
type Stats struct {
	Delivered int64
	Failed    int64
	Stale     int64
}

// FeedbackWorker posts queued corrections to the classifier service.
type FeedbackWorker struct {
	poster classifier.FeedbackPoster
	now    func() time.Time
	logger *log.Logger

	delivered atomic.Int64
	failed    atomic.Int64
	stale     atomic.Int64
}

func NewFeedbackWorker(poster classifier.FeedbackPoster, logger *log.Logger) *FeedbackWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &FeedbackWorker{
		poster: poster,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleFeedbackMessage delivers one message. A returned error makes the
// consumer requeue or drop the message.
func (w *FeedbackWorker) HandleFeedbackMessage(ctx context.Context, msg *amqp.FeedbackMessage) error {
	if !msg.Timestamp.IsZero() && w.now().Sub(msg.Timestamp) > StaleAfter {
		w.stale.Add(1)
		w.logger.InfoContext(ctx, "Skipping stale classifier feedback",
			log.FieldCategory, msg.CorrectCategorySlug,
			"queued_at", msg.Timestamp)
		return nil
	}

	if err := w.poster.PostFeedback(ctx, msg.Feedback); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("post feedback: %w", err)
	}

	w.delivered.Add(1)
	w.logger.InfoContext(ctx, "Classifier feedback delivered",
		log.FieldOperation, log.OpFeedback,
		log.FieldCategory, msg.CorrectCategorySlug)
	return nil
}

func (w *FeedbackWorker) Stats() Stats {
	return Stats{
		Delivered: w.delivered.Load(),
		Failed:    w.failed.Load(),
		Stale:     w.stale.Load(),
	}
}
