package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestClassifyTaggedError(t *testing.T) {
	err := New(CategoryStorage, "upload failed for %s", "a.jpg")
	c := Classify(err)
	if c.Category != CategoryStorage {
		t.Errorf("expected storage category, got %s", c.Category)
	}
	if !c.Policy.Retryable || c.Policy.MaxRetries != 3 {
		t.Errorf("unexpected storage policy: %+v", c.Policy)
	}
}

func TestClassifyWrappedTaggedError(t *testing.T) {
	inner := Wrap(CategoryTimeout, errors.New("context deadline exceeded"), "gemini call")
	wrapped := fmt.Errorf("analysis step: %w", inner)
	if c := Classify(wrapped); c.Category != CategoryTimeout {
		t.Errorf("expected timeout category through wrapping, got %s", c.Category)
	}
}

func TestClassifyKeywordFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want Category
	}{
		{"failed to upload object to bucket", CategoryStorage},
		{"request timed out after 60s", CategoryTimeout},
		{"gemini API error (status 429)", CategoryAIAPI},
		{"could not embed XMP packet", CategoryMetadata},
		{"pgx: connection closed", CategoryDatabase},
		{"dial tcp 10.0.0.1:443: connection refused", CategoryNetwork},
		{"deployment mismatch detected", CategoryDeployment},
		{"validation failed: unsupported format", CategoryValidation},
		{"something completely different", CategoryUnknown},
	}
	for _, tc := range cases {
		if c := Classify(errors.New(tc.msg)); c.Category != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.msg, c.Category, tc.want)
		}
	}
}

func TestNonRetryableCategories(t *testing.T) {
	for _, cat := range []Category{CategoryDeployment, CategoryValidation} {
		if c := Classify(New(cat, "boom")); c.Policy.Retryable {
			t.Errorf("%s should not be retryable", cat)
		}
	}
}

func TestUnknownGetsSingleRetry(t *testing.T) {
	c := Classify(errors.New("mystery failure"))
	if !c.Policy.Retryable || c.Policy.MaxRetries != 1 {
		t.Errorf("unknown errors should get exactly one retry, got %+v", c.Policy)
	}
}

func TestDelayExponentialWithCap(t *testing.T) {
	policy := Policy{Retryable: true, MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Exponential: true}

	// attempt 3 => base * 2^2 = 4s, jitter at most 10% on top
	d := Delay(policy, 3)
	if d < 4*time.Second || d > 4400*time.Millisecond {
		t.Errorf("attempt 3 delay out of range: %v", d)
	}

	// attempt 10 would be 512s uncapped; cap first, then jitter
	d = Delay(policy, 10)
	if d < 30*time.Second || d > 33*time.Second {
		t.Errorf("capped delay out of range: %v", d)
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return New(CategoryNetwork, "connection reset")
		}
		return nil
	}

	var recorded []int
	retries, err := Do(context.Background(), op, func(attempt int, err error, c Classification) {
		recorded = append(recorded, attempt)
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if retries != 2 {
		t.Errorf("expected 2 retries, got %d", retries)
	}
	if len(recorded) != 2 || recorded[0] != 1 || recorded[1] != 2 {
		t.Errorf("onRetry attempts = %v, want [1 2]", recorded)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return New(CategoryNetwork, "connection refused")
	}

	retries, err := Do(context.Background(), op, nil)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if retries != 3 {
		t.Errorf("expected 3 retries for network errors, got %d", retries)
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts total, got %d", attempts)
	}
}

func TestDoStopsImmediatelyOnNonRetryable(t *testing.T) {
	attempts := 0
	op := func(ctx context.Context) error {
		attempts++
		return New(CategoryValidation, "unsupported format")
	}

	retries, err := Do(context.Background(), op, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if retries != 0 || attempts != 1 {
		t.Errorf("non-retryable error should fail fast: retries=%d attempts=%d", retries, attempts)
	}
}

func TestDoHonoursContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	op := func(ctx context.Context) error {
		cancel()
		return New(CategoryNetwork, "connection reset")
	}

	_, err := Do(ctx, op, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
