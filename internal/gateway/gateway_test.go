package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"PaperPromoter/internal/domain"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
	return ctx.Err()
}

// scriptedModel returns errs[i] on call i and succeeds afterwards.
type scriptedModel struct {
	mu    sync.Mutex
	calls int
	errs  []error
	reply string
	block bool
}

func (m *scriptedModel) next(ctx context.Context) (string, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if i < len(m.errs) {
		return "", m.errs[i]
	}
	return m.reply, nil
}

func (m *scriptedModel) Complete(ctx context.Context, _ domain.Prompt, _ domain.CallOptions) (string, error) {
	return m.next(ctx)
}

func (m *scriptedModel) Describe(ctx context.Context, _ domain.Image, _ domain.Prompt, _ domain.CallOptions) (string, error) {
	return m.next(ctx)
}

func (m *scriptedModel) TextModelName() string   { return "text-test" }
func (m *scriptedModel) VisionModelName() string { return "vision-test" }

func (m *scriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestGateway(m *scriptedModel, settings Settings) (*Gateway, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)}
	g := New(m, m, settings, slog.New(slog.NewTextHandler(io.Discard, nil)))
	g.sleep = clock.Sleep
	g.cooldown = newCooldown(clock.Now)
	return g, clock
}

func transient(status int) error {
	return &domain.TransportError{StatusCode: status, Retriable: true, Err: errors.New("temporary")}
}

func TestGenerateTextRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{errs: []error{transient(503), transient(502)}, reply: "draft"}
	g, clock := newTestGateway(m, Settings{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second})

	out, err := g.GenerateText(context.Background(), domain.Prompt{User: "hi"}, domain.CallOptions{})
	if err != nil {
		t.Fatalf("GenerateText returned error: %v", err)
	}
	if out != "draft" {
		t.Fatalf("unexpected output %q", out)
	}
	if m.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", m.Calls())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(clock.slept) != len(want) || clock.slept[0] != want[0] || clock.slept[1] != want[1] {
		t.Fatalf("unexpected backoff sequence %v", clock.slept)
	}
}

func TestGenerateTextRejectedIsNotRetried(t *testing.T) {
	t.Parallel()

	rejection := &domain.TransportError{StatusCode: 400, Retriable: false, Err: errors.New("content policy")}
	m := &scriptedModel{errs: []error{rejection}, reply: "never"}
	g, _ := newTestGateway(m, Settings{MaxRetries: 3, BaseDelay: time.Second})

	_, err := g.GenerateText(context.Background(), domain.Prompt{User: "hi"}, domain.CallOptions{})
	var rejected *domain.ModelRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected ModelRejectedError, got %v", err)
	}
	if rejected.StatusCode != 400 {
		t.Fatalf("unexpected status %d", rejected.StatusCode)
	}
	if m.Calls() != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", m.Calls())
	}
}

func TestGenerateTextExhaustsRetries(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{errs: []error{transient(500), transient(500), transient(500), transient(500)}}
	g, _ := newTestGateway(m, Settings{MaxRetries: 2, BaseDelay: time.Millisecond})

	_, err := g.GenerateText(context.Background(), domain.Prompt{User: "hi"}, domain.CallOptions{})
	var unavailable *domain.ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if unavailable.Attempts != 3 || m.Calls() != 3 {
		t.Fatalf("expected 3 attempts, got error=%d calls=%d", unavailable.Attempts, m.Calls())
	}
}

func TestCallTimeoutSurfacesAsUnavailable(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{block: true}
	g, _ := newTestGateway(m, Settings{MaxRetries: 1, CallTimeout: 10 * time.Millisecond})

	_, err := g.AnalyzeImage(context.Background(), domain.Image{MIME: "image/jpeg", Data: []byte{1}}, domain.Prompt{User: "describe"}, domain.CallOptions{})
	var unavailable *domain.ModelUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected ModelUnavailableError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
	if m.Calls() != 2 {
		t.Fatalf("expected 2 attempts, got %d", m.Calls())
	}
}

func TestRateLimitHonoursRetryAfter(t *testing.T) {
	t.Parallel()

	limited := &domain.TransportError{StatusCode: 429, Retriable: true, RetryAfter: 7, Err: errors.New("slow down")}
	m := &scriptedModel{errs: []error{limited}, reply: "ok"}
	g, clock := newTestGateway(m, Settings{MaxRetries: 2, BaseDelay: time.Second})

	if _, err := g.GenerateText(context.Background(), domain.Prompt{User: "hi"}, domain.CallOptions{}); err != nil {
		t.Fatalf("GenerateText: %v", err)
	}

	var total time.Duration
	for _, d := range clock.slept {
		total += d
	}
	if total < 7*time.Second {
		t.Fatalf("expected to wait at least Retry-After, waited %v (%v)", total, clock.slept)
	}
}

func TestAnalyzeImageRejectsEmptyImage(t *testing.T) {
	t.Parallel()

	m := &scriptedModel{reply: "ok"}
	g, _ := newTestGateway(m, DefaultSettings())

	_, err := g.AnalyzeImage(context.Background(), domain.Image{}, domain.Prompt{User: "x"}, domain.CallOptions{})
	if domain.KindOf(err) != domain.KindModelRejected {
		t.Fatalf("expected rejection, got %v", err)
	}
	if m.Calls() != 0 {
		t.Fatalf("transport must not be called")
	}
}

func TestMissingTransportIsRejected(t *testing.T) {
	t.Parallel()

	g := New(nil, nil, DefaultSettings(), nil)
	if _, err := g.GenerateText(context.Background(), domain.Prompt{}, domain.CallOptions{}); domain.KindOf(err) != domain.KindModelRejected {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	g := New(nil, nil, Settings{BaseDelay: time.Second, MaxDelay: 5 * time.Second}, nil)
	got := []time.Duration{g.backoff(0), g.backoff(1), g.backoff(2), g.backoff(3), g.backoff(8)}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("backoff(%d): want %v, got %v", i, want[i], got[i])
		}
	}
}
