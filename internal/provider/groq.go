package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/uemahub/sabia/internal/log"
)

// chatAPI is the slice of the go-openai client this package consumes.
// Defined here, consumer-side, so tests can inject a fake.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config holds the parameters for the Groq-backed provider.
type Config struct {
	APIKey      string
	BaseURL     string // OpenAI-compatible endpoint
	Model       string
	Temperature float32

	RetryConfig          RetryConfig          // zero value uses defaults
	CircuitBreakerConfig CircuitBreakerConfig // zero value uses defaults
	RateLimiter          *rate.Limiter        // nil = default 5 req/s, burst 10
	Logger               log.Logger           // nil = discard
}

// Client implements Provider against an OpenAI-compatible chat endpoint.
//
// All configuration is captured immutably at construction; Client is safe
// for concurrent use.
type Client struct {
	api         chatAPI
	model       string
	temperature float32

	retryConfig RetryConfig
	breaker     *CircuitBreaker
	limiter     *rate.Limiter
	logger      log.Logger
}

// NewClient creates a Client for the configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	return newClient(openai.NewClientWithConfig(apiCfg), cfg), nil
}

// newClient wires an explicit chatAPI. Used by NewClient and by tests.
func newClient(api chatAPI, cfg Config) *Client {
	retryCfg := cfg.RetryConfig
	if retryCfg.MaxRetries == 0 {
		retryCfg = DefaultRetryConfig()
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(5, 10)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		api:         api,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		retryConfig: retryCfg,
		breaker:     NewCircuitBreaker(cfg.CircuitBreakerConfig),
		limiter:     limiter,
		logger:      logger,
	}
}

// queryParameters is the JSON schema shared by every retrieval tool: a
// single free-text query argument.
var queryParameters = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Termo ou pergunta de busca, curto e específico.",
		},
	},
	"required": []string{"query"},
}

// Complete sends one chat completion and maps the result to a Reply.
//
// An open circuit breaker reports as ErrThrottled: from the caller's point
// of view the upstream is unavailable either way, and the user-facing
// treatment (apology, no retry) is identical.
func (c *Client) Complete(ctx context.Context, req Request) (*Reply, error) {
	if err := c.breaker.Allow(); err != nil {
		c.logger.Warn("circuit breaker open, rejecting completion",
			"state", c.breaker.State().String())
		return nil, fmt.Errorf("%w: %s", ErrThrottled, err)
	}

	resp, err := c.completeWithRetry(ctx, c.buildRequest(req))
	if err != nil {
		if !errors.Is(err, ErrMalformed) {
			// Malformed responses are an upstream content problem, not an
			// availability problem; they must not open the breaker.
			c.breaker.Failure()
		}
		return nil, err
	}
	c.breaker.Success()

	return c.parseResponse(resp)
}

// buildRequest converts the provider-neutral Request to the wire schema.
func (c *Client) buildRequest(req Request) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		wire := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(map[string]string{"query": tc.Query})
			wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		messages = append(messages, wire)
	}

	tools := make([]openai.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  queryParameters,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		Tools:       tools,
	}
}

// parseResponse maps the wire response to the tagged Reply.
func (c *Client) parseResponse(resp openai.ChatCompletionResponse) (*Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrMalformed)
	}

	choice := resp.Choices[0].Message
	reply := &Reply{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	if len(choice.ToolCalls) > 0 {
		// One tool per iteration: take the first call. Groq emits parallel
		// calls rarely with these prompts, and the loop reaches the model
		// again on the next iteration anyway.
		tc := choice.ToolCalls[0]
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: tool arguments %q: %s", ErrMalformed, tc.Function.Arguments, err)
		}
		reply.Kind = ReplyToolCall
		reply.ToolCall = &ToolCall{ID: tc.ID, Name: tc.Function.Name, Query: args.Query}
		return reply, nil
	}

	reply.Kind = ReplyAnswer
	reply.Answer = choice.Content
	return reply, nil
}

// classifyError maps a wire error onto the package taxonomy.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %s", ErrThrottled, apiErr.Message)
		case apiErr.HTTPStatusCode >= 500:
			// Transient server trouble; same treatment as throttling.
			return fmt.Errorf("%w: upstream %d: %s", ErrThrottled, apiErr.HTTPStatusCode, apiErr.Message)
		case apiErr.HTTPStatusCode == 400 && isToolUseFailure(apiErr):
			return fmt.Errorf("%w (session history rejected): %s", ErrHistoryConflict, apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && (reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500) {
		return fmt.Errorf("%w: %s", ErrThrottled, reqErr.Error())
	}

	return err
}

// isToolUseFailure recognizes Groq's rejection of a history whose tool
// calls cannot be reconciled with their results.
func isToolUseFailure(apiErr *openai.APIError) bool {
	if code, ok := apiErr.Code.(string); ok && code == "tool_use_failed" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "tool_use_failed")
}
