package classifier

import (
	"context"
	"sync"
	"time"

	"finsight/internal/log"
)

// Dispatcher delivers feedback in the background. Dispatch must not wait for
// the classifier to answer.
type Dispatcher interface {
	Dispatch(ctx context.Context, fb Feedback) error
}

// FeedbackPoster is the synchronous side of a dispatcher.
type FeedbackPoster interface {
	PostFeedback(ctx context.Context, fb Feedback) error
}

// GoroutineDispatcher posts each feedback on its own goroutine, detached
// from the caller's cancellation and bounded by timeout.
type GoroutineDispatcher struct {
	poster  FeedbackPoster
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

func NewGoroutineDispatcher(poster FeedbackPoster, timeout time.Duration, logger *log.Logger) *GoroutineDispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &GoroutineDispatcher{poster: poster, timeout: timeout, logger: logger}
}

func (d *GoroutineDispatcher) Dispatch(ctx context.Context, fb Feedback) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.poster.PostFeedback(ctx, fb); err != nil {
			d.logger.Warn("Classifier feedback failed",
				log.FieldOperation, log.OpFeedback,
				log.FieldCategory, fb.CorrectCategorySlug,
				log.FieldError, err)
			return
		}
		d.logger.Debug("Classifier feedback delivered",
			log.FieldOperation, log.OpFeedback,
			log.FieldCategory, fb.CorrectCategorySlug)
	}()
	return nil
}

// Wait blocks until every dispatched feedback has finished. Used on shutdown.
func (d *GoroutineDispatcher) Wait() {
	d.wg.Wait()
}
