package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/amqp"
	"finsight/internal/classifier"
)

type recordingPoster struct {
	posted []classifier.Feedback
	err    error
}

func (p *recordingPoster) PostFeedback(_ context.Context, fb classifier.Feedback) error {
	if p.err != nil {
		return p.err
	}
	p.posted = append(p.posted, fb)
	return nil
}

var now = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func message(queuedAt time.Time) *amqp.FeedbackMessage {
	return &amqp.FeedbackMessage{
		Feedback:  classifier.Feedback{Description: "uber eats", CorrectCategorySlug: "food-dining"},
		Timestamp: queuedAt,
	}
}

func newWorker(p *recordingPoster) *FeedbackWorker {
	w := NewFeedbackWorker(p, nil)
	w.now = func() time.Time { return now }
	return w
}

func TestHandleFeedbackMessage_Delivers(t *testing.T) {
	p := &recordingPoster{}
	w := newWorker(p)

	require.NoError(t, w.HandleFeedbackMessage(context.Background(), message(now.Add(-time.Minute))))
	require.Len(t, p.posted, 1)
	assert.Equal(t, "food-dining", p.posted[0].CorrectCategorySlug)
	assert.Equal(t, Stats{Delivered: 1}, w.Stats())
}

func TestHandleFeedbackMessage_PropagatesFailure(t *testing.T) {
	p := &recordingPoster{err: errors.New("classifier returned 503")}
	w := newWorker(p)

	err := w.HandleFeedbackMessage(context.Background(), message(now))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, Stats{Failed: 1}, w.Stats())
}

func TestHandleFeedbackMessage_SkipsStale(t *testing.T) {
	p := &recordingPoster{}
	w := newWorker(p)

	require.NoError(t, w.HandleFeedbackMessage(context.Background(), message(now.Add(-StaleAfter-time.Hour))))
	assert.Empty(t, p.posted)
	assert.Equal(t, Stats{Stale: 1}, w.Stats())

	require.NoError(t, w.HandleFeedbackMessage(context.Background(), message(time.Time{})))
	assert.Len(t, p.posted, 1, "messages without a timestamp are delivered")
}
