package modelcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	pkgerrors "github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

// googleInvoker talks to the Gemini generateContent API over plain HTTP.
type googleInvoker struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func newGoogleInvoker(baseLog *logger.Logger) Invoker {
	baseURL := strings.TrimSpace(os.Getenv("GOOGLE_AI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &googleInvoker{
		log:        baseLog.With("component", "GoogleInvoker"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(os.Getenv("GOOGLE_AI_API_KEY")),
		httpClient: &http.Client{},
		maxRetries: 3,
	}
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"topP,omitempty"`
	TopK             *int            `json:"topK,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ThinkingConfig   *geminiThinking `json:"thinkingConfig,omitempty"`
}

type geminiThinking struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *googleInvoker) CallModel(ctx context.Context, cfg *aiconfig.Resolved, prompt string, opts Options) (string, error) {
	if g.apiKey == "" {
		return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("missing GOOGLE_AI_API_KEY")}
	}

	callCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	temp := cfg.Temperature
	gen := &geminiGenConfig{
		Temperature:     &temp,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	if cfg.TopP > 0 {
		p := cfg.TopP
		gen.TopP = &p
	}
	if cfg.TopK > 0 {
		k := cfg.TopK
		gen.TopK = &k
	}
	if opts.ResponseFormat == "json" {
		gen.ResponseMimeType = "application/json"
	}
	if cfg.ThinkingBudget > 0 {
		gen.ThinkingConfig = &geminiThinking{ThinkingBudget: cfg.ThinkingBudget}
	}

	body, err := json.Marshal(geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: gen,
	})
	if err != nil {
		return "", &pkgerrors.ModelInvocationError{Err: err}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, cfg.Model)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-callCtx.Done():
				return "", &pkgerrors.ModelInvocationError{Timeout: true, Err: callCtx.Err()}
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}

		req, rErr := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
		if rErr != nil {
			return "", &pkgerrors.ModelInvocationError{Err: rErr}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", g.apiKey)

		resp, dErr := g.httpClient.Do(req)
		if dErr != nil {
			if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return "", &pkgerrors.ModelInvocationError{Timeout: true, Err: dErr}
			}
			lastErr = dErr
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("gemini http %d: %s", resp.StatusCode, excerpt(string(raw), 200))
			g.log.Warn("Gemini call retryable failure", "status", resp.StatusCode, "attempt", attempt, "job_id", opts.JobID)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("gemini http %d: %s", resp.StatusCode, excerpt(string(raw), 400))}
		}

		var parsed geminiResponse
		if uErr := json.Unmarshal(raw, &parsed); uErr != nil {
			return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("gemini decode: %w", uErr)}
		}
		if parsed.Error != nil {
			return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("gemini error %d: %s", parsed.Error.Code, parsed.Error.Message)}
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("gemini: empty candidates")}
		}

		var sb strings.Builder
		for _, part := range parsed.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		content := sb.String()
		g.log.Debug("Gemini call finished",
			"model", cfg.Model,
			"job_id", opts.JobID,
			"prompt_chars", len(prompt),
			"output_chars", len(content),
		)
		return content, nil
	}

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", &pkgerrors.ModelInvocationError{Timeout: true, Err: callCtx.Err()}
	}
	return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("gemini: retries exhausted: %w", lastErr)}
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
