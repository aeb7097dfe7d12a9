package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/ports"
)

// Settings carries the resolved credentials and model names.
type Settings struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
}

// OpenAIClient implements the text and vision transports on top of any
// OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	textModel   string
	visionModel string
	opts        []option.RequestOption
}

var (
	_ ports.TextModel   = (*OpenAIClient)(nil)
	_ ports.VisionModel = (*OpenAIClient)(nil)
)

// NewOpenAIClient validates settings and prepares request options. Retries
// are disabled in the SDK because the gateway owns the retry policy.
func NewOpenAIClient(cfg Settings) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key missing; provide --text-api-key or OPENAI_API_KEY")
	}
	if strings.TrimSpace(cfg.TextModel) == "" {
		return nil, errors.New("text model is required")
	}
	vision := cfg.VisionModel
	if vision == "" {
		vision = cfg.TextModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{textModel: cfg.TextModel, visionModel: vision, opts: opts}, nil
}

// TextModelName identifies the text model in errors and logs.
func (o *OpenAIClient) TextModelName() string { return o.textModel }

// VisionModelName identifies the vision model in errors and logs.
func (o *OpenAIClient) VisionModelName() string { return o.visionModel }

// Complete runs a text-only chat completion.
func (o *OpenAIClient) Complete(ctx context.Context, prompt domain.Prompt, opts domain.CallOptions) (string, error) {
	msgs := systemMessages(prompt)
	msgs = append(msgs, openai.UserMessage(prompt.User))
	return o.chat(ctx, o.textModel, msgs, opts)
}

// Describe sends the image inline as a base64 data URL next to the prompt.
func (o *OpenAIClient) Describe(ctx context.Context, img domain.Image, prompt domain.Prompt, opts domain.CallOptions) (string, error) {
	mime := img.MIME
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt.User),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}
	msgs := systemMessages(prompt)
	msgs = append(msgs, openai.UserMessage(parts))
	return o.chat(ctx, o.visionModel, msgs, opts)
}

func (o *OpenAIClient) chat(ctx context.Context, model string, msgs []openai.ChatCompletionMessageParamUnion, opts domain.CallOptions) (string, error) {
	client := openai.NewClient(o.opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai: empty message content")
	}
	return content, nil
}

func systemMessages(prompt domain.Prompt) []openai.ChatCompletionMessageParamUnion {
	if strings.TrimSpace(prompt.System) == "" {
		return nil
	}
	return []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(prompt.System)}
}

// translateError attaches HTTP semantics so the gateway can classify the failure.
func translateError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	te := &domain.TransportError{
		StatusCode: apiErr.StatusCode,
		Retriable:  retriableStatus(apiErr.StatusCode),
		Err:        err,
	}
	if apiErr.Response != nil {
		if secs, convErr := strconv.Atoi(apiErr.Response.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			te.RetryAfter = secs
		}
	}
	return te
}

func retriableStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusConflict,
		status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
