package modelcall

import (
	"context"
	"fmt"
	"time"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// Options carries per-call knobs. ResponseFormat "json" is a best-effort hint
// to the provider, not a guarantee; callers must still defensively parse.
type Options struct {
	Timeout        time.Duration
	JobID          string
	ResponseFormat string
}

// Invoker is the narrow contract to one model provider: a prompt in, raw text
// out, within a bounded timeout. Timeouts are enforced by severing the wait;
// there is no cooperative mid-call cancellation of the remote model.
type Invoker interface {
	CallModel(ctx context.Context, cfg *aiconfig.Resolved, prompt string, opts Options) (string, error)
}

// Factory hands out the invoker matching a resolved config's provider.
type Factory struct {
	openai Invoker
	google Invoker
}

func NewFactory(baseLog *logger.Logger) *Factory {
	return &Factory{
		openai: newOpenAIInvoker(baseLog),
		google: newGoogleInvoker(baseLog),
	}
}

func (f *Factory) For(cfg *aiconfig.Resolved) (Invoker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil model config")
	}
	switch cfg.Provider {
	case aiconfig.ProviderOpenAI:
		return f.openai, nil
	case aiconfig.ProviderGoogle:
		return f.google, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 5 * time.Minute
	}
	return context.WithTimeout(ctx, d)
}
