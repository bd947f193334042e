package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// chatCompletions is the slice of the OpenAI SDK the client uses,
// extracted so tests can substitute a scripted implementation.
type chatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ModelClient talks to an OpenAI-compatible chat-completions endpoint.
// It paces requests so that at most one is in flight and consecutive
// requests are spaced by the configured minimum interval.
type ModelClient struct {
	cfg         Config
	completions chatCompletions
	pace        *pacer
}

var _ Client = (*ModelClient)(nil)

// NewModelClient builds a client from cfg, applying backend defaults
// for base URL, model and request rate.
func NewModelClient(cfg Config) (*ModelClient, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)

	return &ModelClient{
		cfg:         cfg,
		completions: &api.Chat.Completions,
		pace:        newPacer(cfg.MinInterval()),
	}, nil
}

// Generate sends one chat-completion request and converts the reply
// into the provider-neutral response shape.
func (c *ModelClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := c.pace.acquire(ctx); err != nil {
		return nil, &ProviderError{ClientError: ClientError{Message: "request pacing interrupted", Cause: err}}
	}
	defer c.pace.release()

	params := c.buildParams(req)
	slog.Debug("llm.generate",
		"model", params.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools))

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		return nil, translateOpenAIError(err)
	}

	resp, err := buildResponse(completion)
	if err != nil {
		return nil, err
	}
	slog.Debug("llm.generate.done",
		"id", resp.ID,
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"total_tokens", resp.Usage.TotalTokens)
	return resp, nil
}

func (c *ModelClient) buildParams(req GenerateRequest) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = toOpenAITools(req.Tools)
	}
	return params
}

// toOpenAIMessages converts gateway messages to SDK params. Tool-result
// messages are sent with the assistant role: chat-completions rejects
// tool messages whose call id did not appear in a prior assistant turn,
// and the transcript stores tool calls only as flattened text.
func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		default:
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				},
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}
	return out
}

func toOpenAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		fn := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: functionParameters(spec.Parameters),
		}
		if spec.Description != "" {
			fn.Description = openai.String(spec.Description)
		}
		tools = append(tools, openai.ChatCompletionToolParam{Function: fn})
	}
	return tools
}

// functionParameters copies the schema and guarantees an object type,
// which some providers require even for parameterless tools.
func functionParameters(schema map[string]any) shared.FunctionParameters {
	if len(schema) == 0 {
		return shared.FunctionParameters{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return shared.FunctionParameters(out)
}

func buildResponse(completion *openai.ChatCompletion) (*GenerateResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, &ProviderError{ClientError: ClientError{Message: "provider returned no choices"}}
	}
	choice := completion.Choices[0]

	content, err := json.Marshal(choice.Message.Content)
	if err != nil {
		return nil, &ProviderError{ClientError: ClientError{Message: "encoding response content", Cause: err}}
	}

	resp := &GenerateResponse{
		ID:           completion.ID,
		Model:        completion.Model,
		Content:      content,
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if resp.ID == "" {
		resp.ID = "resp_" + uuid.New().String()[:8]
	}

	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()[:8]
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}

func translateOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("chat completion failed with status %d", apiErr.StatusCode)
		return ErrorFromStatusCode(apiErr.StatusCode, msg, err)
	}
	return &ProviderError{ClientError: ClientError{Message: "chat completion failed", Cause: err}}
}
