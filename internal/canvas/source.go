package canvas

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/retry"
)

// ItemSource yields the items of one kind for one course.
type ItemSource interface {
	FetchItems(ctx context.Context, courseID string, kind models.Kind, since *time.Time) ([]models.SourceItem, error)
}

// Verify *Client satisfies ItemSource at compile time.
var _ ItemSource = (*Client)(nil)

// RetryingSource retries transient fetch failures of the wrapped source with
// a bounded backoff policy. Permanent failures are returned at once.
type RetryingSource struct {
	next   ItemSource
	policy retry.Policy
	logger *slog.Logger
}

// NewRetryingSource wraps next. Only transient failures are retried.
func NewRetryingSource(next ItemSource, policy retry.Policy, logger *slog.Logger) *RetryingSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryingSource{next: next, policy: policy, logger: logger}
}

// FetchItems implements ItemSource.
func (s *RetryingSource) FetchItems(ctx context.Context, courseID string, kind models.Kind, since *time.Time) ([]models.SourceItem, error) {
	var items []models.SourceItem
	attempt := 0
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		got, err := s.next.FetchItems(ctx, courseID, kind, since)
		if err != nil {
			if !IsTransient(err) {
				return retry.Permanent(err)
			}
			s.logger.Warn("canvas: transient fetch failure",
				slog.String("course_id", courseID),
				slog.String("kind", string(kind)),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return err
		}
		items = got
		return nil
	})
	return items, err
}
