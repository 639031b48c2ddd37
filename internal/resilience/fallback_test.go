package resilience

import (
	"errors"
	"testing"
	"time"
)

func newEngineGroup(maxFailures int, resetTimeout time.Duration) *FallbackGroup[string] {
	fg := NewFallbackGroup("whisper", "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  maxFailures,
			ResetTimeout: resetTimeout,
		},
	})
	fg.AddFallback("browser", "browser")
	return fg
}

func TestFallbackGroup_PrimaryPreferred(t *testing.T) {
	fg := newEngineGroup(3, 0)

	var used string
	if err := fg.Execute(func(v string) error { used = v; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "whisper" {
		t.Fatalf("used = %q, want whisper", used)
	}
}

func TestFallbackGroup_FallsThroughOnFailure(t *testing.T) {
	fg := newEngineGroup(3, 0)

	var used string
	err := fg.Execute(func(v string) error {
		if v == "whisper" {
			return errTest
		}
		used = v
		return nil
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "browser" {
		t.Fatalf("used = %q, want browser", used)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newEngineGroup(3, 0)

	err := fg.Execute(func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	fg := newEngineGroup(2, time.Hour)

	// Trip the whisper breaker.
	for range 2 {
		_ = fg.Execute(func(v string) error {
			if v == "whisper" {
				return errTest
			}
			return nil
		})
	}

	// A now-healthy primary is still skipped while its breaker is open.
	var used string
	if err := fg.Execute(func(v string) error { used = v; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if used != "browser" {
		t.Fatalf("used = %q, want browser while the whisper circuit is open", used)
	}
}

func TestExecuteWithResult_ReturnsPrimaryResult(t *testing.T) {
	fg := newEngineGroup(3, 0)

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		return "session-" + v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "session-whisper" {
		t.Fatalf("result = %q", got)
	}
}

func TestExecuteWithResult_Failover(t *testing.T) {
	fg := newEngineGroup(3, 0)

	got, err := ExecuteWithResult(fg, func(v string) (string, error) {
		if v == "whisper" {
			return "", errTest
		}
		return "session-" + v, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if got != "session-browser" {
		t.Fatalf("result = %q", got)
	}
}

func TestExecuteWithResult_AllFail(t *testing.T) {
	fg := NewFallbackGroup("whisper", "whisper", FallbackConfig{})

	_, err := ExecuteWithResult(fg, func(string) (string, error) {
		return "", errTest
	})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
