package kafka

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
)

func init() {
	logger.SetOutput(io.Discard)
	handlerBackoff = time.Millisecond
}

func TestHandleWithRetryRecovers(t *testing.T) {
	calls := 0
	handler := func(context.Context, models.Event) error {
		calls++
		if calls < 2 {
			return errors.New("redis timeout")
		}
		return nil
	}
	if err := handleWithRetry(context.Background(), handler, models.Event{ID: "e1"}); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	calls := 0
	failure := errors.New("still down")
	handler := func(context.Context, models.Event) error {
		calls++
		return failure
	}
	if err := handleWithRetry(context.Background(), handler, models.Event{ID: "e2"}); !errors.Is(err, failure) {
		t.Fatalf("expected last handler error, got %v", err)
	}
	if calls != handlerAttempts {
		t.Fatalf("expected %d calls, got %d", handlerAttempts, calls)
	}
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(context.Context, models.Event) error {
		calls++
		cancel()
		return errors.New("fail")
	}
	if err := handleWithRetry(ctx, handler, models.Event{ID: "e3"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
