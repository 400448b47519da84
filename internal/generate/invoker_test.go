package generate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
)

type scriptedGenerator struct {
	name    string
	errs    []error
	text    string
	calls   int
	prompts []string
}

func (g *scriptedGenerator) Name() string {
	if g.name == "" {
		return "scripted"
	}
	return g.name
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return g.text, nil
}

// fakeSleep records requested delays without waiting.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func TestInvokeBlockedShortCircuits(t *testing.T) {
	gen := &scriptedGenerator{}
	iv := New(gen)

	rec := &domain.CanonicalRecord{
		RawContent: "evil",
		Scores:     domain.Scores{Action: domain.ActionBlock},
	}

	res, err := iv.Invoke(context.Background(), rec)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Status != StatusBlocked {
		t.Errorf("status = %q, want blocked", res.Status)
	}
	if res.Response != BlockedResponse {
		t.Errorf("response = %q", res.Response)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times for blocked record, want 0", gen.calls)
	}
}

func TestInvokePromptSelection(t *testing.T) {
	tests := []struct {
		name       string
		action     domain.Action
		wantPrompt string
		wantUsed   string
	}{
		{name: "pass uses raw", action: domain.ActionPass, wantPrompt: "raw text", wantUsed: "original"},
		{name: "sanitize uses sanitized", action: domain.ActionSanitize, wantPrompt: "clean text", wantUsed: "sanitized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{text: "ok"}
			iv := New(gen)

			rec := &domain.CanonicalRecord{
				RawContent:       "raw text",
				SanitizedContent: "clean text",
				Scores:           domain.Scores{Action: tt.action},
			}

			res, err := iv.Invoke(context.Background(), rec)
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			if gen.prompts[0] != tt.wantPrompt {
				t.Errorf("prompt = %q, want %q", gen.prompts[0], tt.wantPrompt)
			}
			if res.PromptUsed != tt.wantUsed {
				t.Errorf("prompt_used = %q, want %q", res.PromptUsed, tt.wantUsed)
			}
		})
	}
}

func TestInvokeRateLimitBackoff(t *testing.T) {
	rateErr := errors.New("API error (status 429): rate limit exceeded")
	gen := &scriptedGenerator{errs: []error{rateErr, rateErr, rateErr}}
	fs := &fakeSleep{}

	d := 100 * time.Millisecond
	iv := New(gen,
		WithMaxAttempts(3),
		WithInitialDelay(d),
		WithSleep(fs.sleep),
	)

	rec := &domain.CanonicalRecord{
		RawContent: "hello",
		Scores:     domain.Scores{Action: domain.ActionPass},
	}

	_, err := iv.Invoke(context.Background(), rec)

	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Kind != domain.ErrorKindRateLimited {
		t.Fatalf("error = %v, want rate_limited", err)
	}

	if gen.calls != 3 {
		t.Errorf("calls = %d, want exactly 3", gen.calls)
	}

	wantDelays := []time.Duration{d, 2 * d, 4 * d}
	if len(fs.delays) != len(wantDelays) {
		t.Fatalf("delays = %v, want %v", fs.delays, wantDelays)
	}
	for i, want := range wantDelays {
		if fs.delays[i] != want {
			t.Errorf("delay[%d] = %v, want %v", i, fs.delays[i], want)
		}
	}

	if gwErr.Details == "" {
		t.Error("rate-limited failure should carry a suggested wait")
	}
}

func TestInvokeRecoveryAfterRateLimit(t *testing.T) {
	rateErr := errors.New("resource exhausted: quota")
	gen := &scriptedGenerator{errs: []error{rateErr, nil}, text: "finally"}
	fs := &fakeSleep{}

	iv := New(gen, WithSleep(fs.sleep), WithInitialDelay(time.Second))

	rec := &domain.CanonicalRecord{RawContent: "hi", Scores: domain.Scores{Action: domain.ActionPass}}
	res, err := iv.Invoke(context.Background(), rec)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Response != "finally" {
		t.Errorf("response = %q", res.Response)
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
	if len(fs.delays) != 1 || fs.delays[0] != time.Second {
		t.Errorf("delays = %v, want [1s]", fs.delays)
	}
}

func TestInvokeNonRetryableFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind domain.ErrorKind
	}{
		{name: "unauthorized", err: errors.New("401 unauthorized: invalid api key"), wantKind: domain.ErrorKindUnauthorized},
		{name: "unknown", err: errors.New("model weights corrupted"), wantKind: domain.ErrorKindUnknownInvocation},
		{name: "unreachable", err: errors.New("dial tcp 127.0.0.1:11434: connection refused"), wantKind: domain.ErrorKindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{errs: []error{tt.err}}
			fs := &fakeSleep{}
			iv := New(gen, WithSleep(fs.sleep))

			rec := &domain.CanonicalRecord{RawContent: "hi", Scores: domain.Scores{Action: domain.ActionPass}}
			_, err := iv.Invoke(context.Background(), rec)

			var gwErr *domain.GatewayError
			if !errors.As(err, &gwErr) || gwErr.Kind != tt.wantKind {
				t.Fatalf("error = %v, want kind %q", err, tt.wantKind)
			}
			if gen.calls != 1 {
				t.Errorf("calls = %d, want exactly 1 (no retry)", gen.calls)
			}
			if len(fs.delays) != 0 {
				t.Errorf("delays = %v, want none", fs.delays)
			}
		})
	}
}

func TestInvokeSleepCancellation(t *testing.T) {
	rateErr := errors.New("429 too many requests")
	gen := &scriptedGenerator{errs: []error{rateErr, rateErr, rateErr}}

	ctx, cancel := context.WithCancel(context.Background())
	iv := New(gen, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	rec := &domain.CanonicalRecord{RawContent: "hi", Scores: domain.Scores{Action: domain.ActionPass}}
	_, err := iv.Invoke(ctx, rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 before cancellation", gen.calls)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{name: "status 429 text", err: errors.New("API error (status 429)"), want: domain.ErrorKindRateLimited},
		{name: "rate substring", err: errors.New("you are being rate limited"), want: domain.ErrorKindRateLimited},
		{name: "quota substring", err: errors.New("quota exceeded for project"), want: domain.ErrorKindRateLimited},
		{name: "resource exhausted", err: errors.New("rpc error: RESOURCE EXHAUSTED"), want: domain.ErrorKindRateLimited},
		{name: "unauthorized text", err: errors.New("unauthorized"), want: domain.ErrorKindUnauthorized},
		{name: "api key text", err: errors.New("invalid api key provided"), want: domain.ErrorKindUnauthorized},
		{name: "gateway error status", err: domain.NewGatewayError(domain.ErrorKindBackend, "x").WithStatusCode(429), want: domain.ErrorKindRateLimited},
		{name: "typed unavailable", err: domain.ErrUnavailable("down"), want: domain.ErrorKindUnavailable},
		{name: "anything else", err: errors.New("weird failure"), want: domain.ErrorKindUnknownInvocation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
