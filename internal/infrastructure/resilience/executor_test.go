package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     1 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})

	attempts := 0
	got, err := Call(context.Background(), exec, "fetch_general_rate", func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", domain.WrapError(domain.ErrTemporary, "query", errors.New("conn reset"))
		}
		return "5%", nil
	}, TemporaryClassifier)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != "5%" || attempts != 2 {
		t.Fatalf("expected value on second attempt, got %q after %d", got, attempts)
	}
}

func TestExecuteAppliesAttemptTimeout(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts: 1,
		AttemptTimeout:   5 * time.Millisecond,
		BreakerEnabled:   false,
	})

	err := exec.Execute(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, TemporaryClassifier)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStateListenerSeesBreakerOpen(t *testing.T) {
	var transitions []gobreaker.State
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, WithStateListener(func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}))

	_ = exec.Execute(context.Background(), "fetch_fta_rates", func(context.Context) error {
		return errors.New("down")
	}, nil)

	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Fatalf("expected open transition, got %v", transitions)
	}
}

func TestTemporaryClassifier(t *testing.T) {
	if c := TemporaryClassifier(domain.WrapError(domain.ErrTemporary, "op", errors.New("x"))); !c.Retryable || !c.RecordFailure {
		t.Fatalf("temporary error should retry, got %+v", c)
	}
	if c := TemporaryClassifier(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must not retry or trip breaker, got %+v", c)
	}
	if c := TemporaryClassifier(errors.New("syntax error")); c.Retryable || !c.RecordFailure {
		t.Fatalf("permanent error must fail fast, got %+v", c)
	}
}

func TestForBatchTransportDropsAttemptTimeout(t *testing.T) {
	lookup := DefaultLookupPolicy()
	lookup.RetryMaxAttempts = 5
	lookup.BreakerMinRequests = 20

	got := lookup.ForBatchTransport()
	if got.AttemptTimeout != 0 {
		t.Fatalf("batch requests must not carry a per-attempt timeout, got %s", got.AttemptTimeout)
	}
	if got.RetryMaxAttempts != 2 {
		t.Fatalf("expected a batch to be re-sent at most once, got %d attempts", got.RetryMaxAttempts)
	}
	if got.BreakerMinRequests != 5 {
		t.Fatalf("expected batch breaker to trip after 5 requests, got %d", got.BreakerMinRequests)
	}
	if lookup.AttemptTimeout != 2*time.Second {
		t.Fatalf("lookup policy must be left unchanged, got %s", lookup.AttemptTimeout)
	}
}

func TestForBatchTransportKeepsSingleAttempt(t *testing.T) {
	got := Config{RetryMaxAttempts: 1}.ForBatchTransport()
	if got.RetryMaxAttempts != 1 || got.BreakerOpenTimeout != 30*time.Second {
		t.Fatalf("expected configured single attempt and default breaker timeout, got %+v", got)
	}
}

func TestBatchTransportPolicyOutlivesLookupTimeout(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: time.Millisecond,
		AttemptTimeout:      5 * time.Millisecond,
	}.ForBatchTransport())

	err := exec.Execute(context.Background(), "nats.request_batch", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
			return nil
		}
	}, nil)
	if err != nil {
		t.Fatalf("expected slow batch reply to complete, got %v", err)
	}
}
