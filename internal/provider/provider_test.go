package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI scripts a sequence of responses/errors for the chatAPI interface.
type fakeAPI struct {
	calls     int
	responses []openai.ChatCompletionResponse
	errs      []error
	lastReq   openai.ChatCompletionRequest
}

func (f *fakeAPI) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	i := f.calls
	f.calls++
	var resp openai.ChatCompletionResponse
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

// fastRetry keeps tests quick while preserving the retry count.
func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func testClient(api chatAPI) *Client {
	return newClient(api, Config{
		Model:       "llama-3.3-70b-versatile",
		RetryConfig: fastRetry(),
	})
}

func answerResponse(text string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: text}},
		},
		Usage: openai.Usage{PromptTokens: 12, CompletionTokens: 34},
	}
}

func toolCallResponse(name, args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:       "call_1",
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: name, Arguments: args},
				}},
			}},
		},
	}
}

func TestComplete_Answer(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{answerResponse("A matrícula começa em 13/01/2026.")}}
	c := testClient(api)

	reply, err := c.Complete(context.Background(), Request{
		System:   "instruções",
		Messages: []Message{{Role: RoleUser, Content: "quando é a matrícula?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ReplyAnswer, reply.Kind)
	assert.Equal(t, "A matrícula começa em 13/01/2026.", reply.Answer)
	assert.Equal(t, 12, reply.InputTokens)
	assert.Equal(t, 34, reply.OutputTokens)
	assert.Equal(t, 1, api.calls)
}

func TestComplete_ToolCall(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{
		toolCallResponse("consultar_calendario_academico", `{"query":"matricula veteranos 2026.1"}`),
	}}
	c := testClient(api)

	reply, err := c.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "quando é a matrícula?"}},
		Tools:    []ToolSpec{{Name: "consultar_calendario_academico", Description: "datas do calendário"}},
	})
	require.NoError(t, err)

	assert.Equal(t, ReplyToolCall, reply.Kind)
	require.NotNil(t, reply.ToolCall)
	assert.Equal(t, "call_1", reply.ToolCall.ID)
	assert.Equal(t, "consultar_calendario_academico", reply.ToolCall.Name)
	assert.Equal(t, "matricula veteranos 2026.1", reply.ToolCall.Query)

	// Tool descriptors must reach the wire request.
	require.Len(t, api.lastReq.Tools, 1)
	assert.Equal(t, "consultar_calendario_academico", api.lastReq.Tools[0].Function.Name)
}

func TestComplete_SystemPromptFirst(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{answerResponse("ok, entendi o contexto")}}
	c := testClient(api)

	_, err := c.Complete(context.Background(), Request{
		System:   "você é o assistente da UEMA",
		Messages: []Message{{Role: RoleUser, Content: "oi"}},
	})
	require.NoError(t, err)

	require.NotEmpty(t, api.lastReq.Messages)
	assert.Equal(t, openai.ChatMessageRoleSystem, api.lastReq.Messages[0].Role)
}

func TestComplete_MalformedToolArguments(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{
		toolCallResponse("consultar_edital_paes", `{not json`),
	}}
	c := testClient(api)

	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, api.calls, "malformed responses are never retried")
}

func TestComplete_EmptyChoices(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{{}}}
	c := testClient(api)

	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestComplete_RetriesThrottlingThenSucceeds(t *testing.T) {
	t.Parallel()

	throttle := &openai.APIError{HTTPStatusCode: 429, Message: "rate limit reached"}
	api := &fakeAPI{
		errs:      []error{throttle, throttle, nil},
		responses: []openai.ChatCompletionResponse{{}, {}, answerResponse("resposta depois do backoff")},
	}
	c := testClient(api)

	reply, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "resposta depois do backoff", reply.Answer)
	assert.Equal(t, 3, api.calls)
}

func TestComplete_ThrottlingExhaustsRetries(t *testing.T) {
	t.Parallel()

	throttle := &openai.APIError{HTTPStatusCode: 429, Message: "rate limit reached"}
	api := &fakeAPI{errs: []error{throttle, throttle, throttle, throttle}}
	c := testClient(api)

	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, 4, api.calls, "one initial attempt plus three retries")
}

func TestComplete_ToolUseFailedIsHistoryConflict(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{errs: []error{
		&openai.APIError{HTTPStatusCode: 400, Code: "tool_use_failed", Message: "Failed to call a function"},
	}}
	c := testClient(api)

	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrHistoryConflict)
	assert.ErrorIs(t, err, ErrMalformed, "history conflicts are a malformed-class error")
	assert.Equal(t, 1, api.calls, "no retry on malformed")
}

func TestComplete_ServerErrorTreatedAsThrottled(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{
		errs:      []error{&openai.APIError{HTTPStatusCode: 503, Message: "unavailable"}, nil},
		responses: []openai.ChatCompletionResponse{{}, answerResponse("recuperado")},
	}
	c := testClient(api)

	reply, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "recuperado", reply.Answer)
}

func TestComplete_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	throttle := &openai.APIError{HTTPStatusCode: 429, Message: "rate limit reached"}
	api := &fakeAPI{}
	for range 100 {
		api.errs = append(api.errs, throttle)
	}
	c := newClient(api, Config{
		Model:                "m",
		RetryConfig:          fastRetry(),
		CircuitBreakerConfig: CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour},
	})

	for range 2 {
		_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
		assert.ErrorIs(t, err, ErrThrottled)
	}
	callsBefore := api.calls

	// Breaker is open now: rejected without touching the upstream.
	_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	assert.ErrorIs(t, err, ErrThrottled)
	assert.Equal(t, callsBefore, api.calls)
	assert.Equal(t, CircuitOpen, c.breaker.State())
}

func TestComplete_MalformedDoesNotTripBreaker(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{responses: []openai.ChatCompletionResponse{{}, {}, {}}}
	c := newClient(api, Config{
		Model:                "m",
		RetryConfig:          fastRetry(),
		CircuitBreakerConfig: CircuitBreakerConfig{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour},
	})

	for range 3 {
		_, err := c.Complete(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
		assert.ErrorIs(t, err, ErrMalformed)
	}
	assert.Equal(t, CircuitClosed, c.breaker.State())
}

func TestComplete_ContextCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	throttle := &openai.APIError{HTTPStatusCode: 429, Message: "rate limit reached"}
	api := &fakeAPI{errs: []error{throttle, throttle, throttle, throttle}}
	c := newClient(api, Config{
		Model:       "m",
		RetryConfig: RetryConfig{MaxRetries: 3, InitialInterval: time.Minute, MaxInterval: time.Minute},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrThrottled), "cancellation is not a throttle verdict")
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Millisecond})
	cb.Failure()
	assert.Equal(t, CircuitOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.Success()
	assert.Equal(t, CircuitClosed, cb.State())
}
