// Package gateway wraps the text and vision model transports with per-call
// timeouts, bounded retries and error classification.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// Settings is the immutable retry and timeout policy of a gateway.
type Settings struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	CallTimeout time.Duration
}

// DefaultSettings mirrors the CLI defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:  3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		CallTimeout: 2 * time.Minute,
	}
}

// Gateway implements ports.ModelGateway. Calls share no state apart from
// the rate-limit cooldown, so they may interleave freely.
type Gateway struct {
	text     ports.TextModel
	vision   ports.VisionModel
	settings Settings
	logger   *slog.Logger
	cooldown *cooldown
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ ports.ModelGateway = (*Gateway)(nil)

// New wires the transports. Either may be nil when the run never needs it;
// calling the missing one fails with a ModelRejectedError.
func New(text ports.TextModel, vision ports.VisionModel, settings Settings, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	if settings.MaxDelay > 0 && settings.BaseDelay > settings.MaxDelay {
		settings.BaseDelay = settings.MaxDelay
	}
	return &Gateway{
		text:     text,
		vision:   vision,
		settings: settings,
		logger:   logger,
		cooldown: newCooldown(time.Now),
		sleep:    sleepContext,
	}
}

// GenerateText sends prompt to the text model.
func (g *Gateway) GenerateText(ctx context.Context, prompt domain.Prompt, opts domain.CallOptions) (string, error) {
	if g.text == nil {
		return "", &domain.ModelRejectedError{Model: "text", Err: errors.New("text model is not configured")}
	}
	model := g.text.TextModelName()
	return g.call(ctx, model, "generate_text", func(ctx context.Context) (string, error) {
		return g.text.Complete(ctx, prompt, opts)
	})
}

// AnalyzeImage sends img with prompt to the vision model.
func (g *Gateway) AnalyzeImage(ctx context.Context, img domain.Image, prompt domain.Prompt, opts domain.CallOptions) (string, error) {
	if g.vision == nil {
		return "", &domain.ModelRejectedError{Model: "vision", Err: errors.New("vision model is not configured")}
	}
	if len(img.Data) == 0 {
		return "", &domain.ModelRejectedError{Model: g.vision.VisionModelName(), Err: errors.New("image is empty")}
	}
	model := g.vision.VisionModelName()
	return g.call(ctx, model, "analyze_image", func(ctx context.Context) (string, error) {
		return g.vision.Describe(ctx, img, prompt, opts)
	})
}

func (g *Gateway) call(ctx context.Context, model, op string, fn func(context.Context) (string, error)) (string, error) {
	var (
		attempts int
		lastErr  error
	)

	for attempt := 0; attempt <= g.settings.MaxRetries; attempt++ {
		if err := g.cooldown.wait(ctx, g.sleep); err != nil {
			lastErr = err
			break
		}

		attempts++
		out, err := g.attempt(ctx, fn)
		if err == nil {
			if attempts > 1 {
				g.logger.Debug("model call recovered", "op", op, "model", model, "attempts", attempts)
			}
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}

		c := classify(err)
		if !c.retriable {
			return "", &domain.ModelRejectedError{Model: model, StatusCode: c.status, Err: err}
		}
		if attempt == g.settings.MaxRetries {
			break
		}

		delay := g.backoff(attempt)
		if c.status == 429 {
			pause := delay
			if ra := time.Duration(c.retryAfter) * time.Second; ra > pause {
				pause = ra
			}
			g.cooldown.extend(pause)
		}

		g.logger.Warn("model call failed, retrying",
			"op", op, "model", model, "attempt", attempts, "status", c.status, "delay", delay, "error", err)

		if err := g.sleep(ctx, delay); err != nil {
			break
		}
	}

	return "", &domain.ModelUnavailableError{Model: model, Attempts: attempts, Err: lastErr}
}

func (g *Gateway) attempt(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if g.settings.CallTimeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, g.settings.CallTimeout)
	defer cancel()

	out, err := fn(callCtx)
	if err == nil && callCtx.Err() != nil && ctx.Err() == nil {
		// The transport ignored the deadline and returned late; treat as timeout.
		return "", fmt.Errorf("call exceeded %s: %w", g.settings.CallTimeout, callCtx.Err())
	}
	return out, err
}

func (g *Gateway) backoff(attempt int) time.Duration {
	delay := g.settings.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if g.settings.MaxDelay > 0 && delay >= g.settings.MaxDelay {
			return g.settings.MaxDelay
		}
	}
	return delay
}

type classification struct {
	retriable  bool
	status     int
	retryAfter int
}

// classify decides whether err is transient. Transports report HTTP
// semantics through domain.TransportError. Timeouts, network errors and
// anything unrecognised are retried.
func classify(err error) classification {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return classification{retriable: te.Retriable, status: te.StatusCode, retryAfter: te.RetryAfter}
	}
	return classification{retriable: true}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
