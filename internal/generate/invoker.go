// Package generate forwards sanctioned prompts to a generation backend with
// bounded retries and error-kind classification.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
	"github.com/prabujayant/LLM-safety-gateway/internal/metrics"
)

const (
	// defaultMaxAttempts bounds the total number of calls per invocation.
	defaultMaxAttempts = 3
	// defaultInitialDelay is the base delay for exponential backoff.
	defaultInitialDelay = 1 * time.Second
)

// BlockedResponse is the fixed sentinel returned for blocked records. No
// network call is made in that case.
const BlockedResponse = "[BLOCKED] This prompt was blocked by the safety gateway due to potentially harmful content."

// Generator is a generation backend taking one prompt per call.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Status is the terminal state of an invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusBlocked Status = "blocked"
)

// Result is the outcome of a successful (or short-circuited) invocation.
type Result struct {
	Status     Status        `json:"status"`
	Response   string        `json:"response"`
	Action     domain.Action `json:"action"`
	PromptUsed string        `json:"prompt_used,omitempty"`
}

// Option configures the invoker.
type Option func(*Invoker)

// WithMaxAttempts sets the attempt bound.
func WithMaxAttempts(n int) Option {
	return func(iv *Invoker) {
		if n > 0 {
			iv.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the backoff base delay.
func WithInitialDelay(d time.Duration) Option {
	return func(iv *Invoker) {
		if d > 0 {
			iv.initialDelay = d
		}
	}
}

// WithSleep replaces the backoff wait, letting tests run without wall-clock
// delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(iv *Invoker) {
		iv.sleep = sleep
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(iv *Invoker) {
		iv.logger = logger
	}
}

// Invoker drives the invocation state machine. It keeps no state between
// invocations.
type Invoker struct {
	gen          Generator
	maxAttempts  int
	initialDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
}

// New creates an invoker for the given generation backend.
func New(gen Generator, opts ...Option) *Invoker {
	iv := &Invoker{
		gen:          gen,
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		sleep:        sleepContext,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Invoke forwards the record's sanctioned prompt to the generation backend.
// Blocked records short-circuit with the sentinel response. Rate-limited
// failures are retried with exponential backoff (initialDelay * 2^attempt,
// 0-based, no jitter) up to the attempt bound; any other failure is terminal
// on first sight.
func (iv *Invoker) Invoke(ctx context.Context, rec *domain.CanonicalRecord) (*Result, error) {
	action := rec.Scores.Action

	if action == domain.ActionBlock {
		metrics.GenerationsTotal.WithLabelValues(iv.gen.Name(), "blocked").Inc()
		return &Result{
			Status:   StatusBlocked,
			Response: BlockedResponse,
			Action:   domain.ActionBlock,
		}, nil
	}

	prompt := rec.RawContent
	promptUsed := "original"
	if action == domain.ActionSanitize && rec.SanitizedContent != "" {
		prompt = rec.SanitizedContent
		promptUsed = "sanitized"
	}

	var lastErr error
	for attempt := 0; attempt < iv.maxAttempts; attempt++ {
		text, err := iv.gen.Generate(ctx, prompt)
		if err == nil {
			metrics.GenerationsTotal.WithLabelValues(iv.gen.Name(), "success").Inc()
			return &Result{
				Status:     StatusSuccess,
				Response:   text,
				Action:     action,
				PromptUsed: promptUsed,
			}, nil
		}
		lastErr = err

		kind := Classify(err)
		if kind != domain.ErrorKindRateLimited {
			metrics.GenerationsTotal.WithLabelValues(iv.gen.Name(), string(kind)).Inc()
			return nil, invocationError(kind, err)
		}

		delay := iv.initialDelay * (1 << attempt)
		iv.logger.Warn("generation backend rate limited, backing off",
			slog.String("backend", iv.gen.Name()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", iv.maxAttempts),
			slog.Duration("backoff", delay),
		)
		if err := iv.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	metrics.GenerationsTotal.WithLabelValues(iv.gen.Name(), "rate_limited").Inc()
	iv.logger.Error("generation backend still rate limited after all attempts",
		slog.Int("attempts", iv.maxAttempts),
		slog.String("error", lastErr.Error()),
	)

	wait := iv.initialDelay * (1 << iv.maxAttempts)
	return nil, domain.ErrRateLimited("generation backend is rate limiting requests").
		WithDetails(fmt.Sprintf("Gave up after %d attempts. Wait about %s and try again.", iv.maxAttempts, wait))
}

// invocationError translates a classified failure into its user-facing form.
func invocationError(kind domain.ErrorKind, err error) *domain.GatewayError {
	switch kind {
	case domain.ErrorKindUnauthorized:
		return domain.ErrUnauthorized("generation backend rejected the configured credentials").
			WithDetails("Check the API key configuration. " + err.Error())
	case domain.ErrorKindUnavailable:
		return domain.ErrUnavailable("generation backend is not reachable").
			WithDetails(err.Error())
	default:
		return domain.ErrUnknownInvocation("generation request failed").
			WithDetails(err.Error())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
