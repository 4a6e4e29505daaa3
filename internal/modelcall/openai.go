package modelcall

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/advieskamer/advies-backend/internal/aiconfig"
	pkgerrors "github.com/advieskamer/advies-backend/internal/pkg/errors"
	"github.com/advieskamer/advies-backend/internal/platform/logger"
)

type openAIInvoker struct {
	log  *logger.Logger
	opts []option.RequestOption
}

func newOpenAIInvoker(baseLog *logger.Logger) Invoker {
	opts := []option.RequestOption{}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if base := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &openAIInvoker{
		log:  baseLog.With("component", "OpenAIInvoker"),
		opts: opts,
	}
}

func (o *openAIInvoker) CallModel(ctx context.Context, cfg *aiconfig.Resolved, prompt string, opts Options) (string, error) {
	callCtx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()

	client := openai.NewClient(o.opts...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature:         openai.Float(cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(cfg.MaxOutputTokens)),
	}
	if cfg.TopP > 0 {
		params.TopP = openai.Float(cfg.TopP)
	}
	if opts.ResponseFormat == "json" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := client.Chat.Completions.New(callCtx, params)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", &pkgerrors.ModelInvocationError{Timeout: true, Err: err}
		}
		return "", &pkgerrors.ModelInvocationError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &pkgerrors.ModelInvocationError{Err: fmt.Errorf("openai: empty choices")}
	}
	content := resp.Choices[0].Message.Content
	o.log.Debug("OpenAI call finished",
		"model", cfg.Model,
		"job_id", opts.JobID,
		"prompt_chars", len(prompt),
		"output_chars", len(content),
	)
	return content, nil
}
