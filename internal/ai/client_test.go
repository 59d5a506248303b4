package ai

import (
	"context"
	"encoding/json"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/pkg/apperr"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		AIConfig: &config.AIConfig{
			APIKey:    "test-key",
			Model:     "test-model",
			BaseURL:   srv.URL + "/",
			MaxTokens: 1024,
		},
	}

	return NewClient(Params{Config: cfg, Logger: zap.NewNop()})
}

func TestSendMessage_ToolUse(t *testing.T) {
	var got claudeRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Filling the email field next."},
				{"type": "tool_use", "id": "toolu_01", "name": "smart_fill_field",
				 "input": {"fieldType": "email", "value": "jane@example.test", "customSelector": null}}
			]
		}`)
	})

	resp, err := client.SendMessage(context.Background(), []entity.AIMessage{{Role: "user", Content: "register Jane"}})
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 1024, got.MaxTokens)
	assert.Len(t, got.Tools, 8)
	require.NotNil(t, got.ToolChoice)
	assert.True(t, got.ToolChoice.DisableParallelToolUse)

	assert.False(t, resp.Complete)
	assert.Equal(t, "Filling the email field next.", resp.Thought)
	assert.Equal(t, "toolu_01", resp.ToolUseID)
	assert.Len(t, resp.Content, 2)
	require.NotNil(t, resp.Action)
	assert.Equal(t, entity.PlannedAction{Name: entity.ActionFill, Role: "email", Value: "jane@example.test"}, *resp.Action)
}

func TestSendMessage_CompleteTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{
			"stop_reason": "tool_use",
			"content": [
				{"type": "tool_use", "id": "toolu_09", "name": "complete_task", "input": {"result": "Account created"}}
			]
		}`)
	})

	resp, err := client.SendMessage(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, resp.Complete)
	assert.Equal(t, "Account created", resp.Result)
	assert.Nil(t, resp.Action)
}

func TestSendMessage_EndTurnWithoutTool(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"stop_reason": "end_turn", "content": [{"type": "text", "text": "All fields validated and submitted."}]}`)
	})

	resp, err := client.SendMessage(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, resp.Complete)
	assert.Equal(t, "All fields validated and submitted.", resp.Result)
}

func TestSendMessage_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error"}}`)
	})

	_, err := client.SendMessage(context.Background(), nil)
	require.Error(t, err)

	assert.True(t, apperr.Is(err, apperr.CodeAIError))
	assert.Equal(t, "api_error", apperr.Reason(err))
	assert.Contains(t, err.Error(), "status 429")
}

func TestParseToolUse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  entity.PlannedAction
	}{
		{
			name:  "open_url",
			input: `{"url":"https://example.test"}`,
			want:  entity.PlannedAction{Name: entity.ActionNavigate, URL: "https://example.test"},
		},
		{
			name:  "smart_fill_field",
			input: `{"fieldType":"custom","value":"x","customSelector":"#nick"}`,
			want:  entity.PlannedAction{Name: entity.ActionFill, Role: "custom", Value: "x", CustomSelector: "#nick"},
		},
		{
			name:  "smart_click_button",
			input: `{"buttonText":"Create Account"}`,
			want:  entity.PlannedAction{Name: entity.ActionClick, ButtonText: "Create Account"},
		},
		{
			name:  "validate_field",
			input: `{"fieldType":"password","expectedValue":"s3cret"}`,
			want:  entity.PlannedAction{Name: entity.ActionValidate, Role: "password", ExpectedValue: "s3cret"},
		},
		{
			name:  "scroll_page",
			input: `{"direction":"down","amount":750}`,
			want:  entity.PlannedAction{Name: entity.ActionScroll, Direction: "down", Amount: 750},
		},
		{
			name:  "scroll_page",
			input: `{"direction":"up"}`,
			want:  entity.PlannedAction{Name: entity.ActionScroll, Direction: "up"},
		},
		{
			name:  "take_screenshot",
			input: `{}`,
			want:  entity.PlannedAction{Name: entity.ActionScreenshot},
		},
		{
			name: "analyze_page_structure",
			want: entity.PlannedAction{Name: entity.ActionAnalyze},
		},
		{
			name:  "press_key",
			input: `{"key":"Enter"}`,
			want:  entity.PlannedAction{Name: "press_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseToolUse(tt.name, json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseToolUse_MalformedInput(t *testing.T) {
	_, err := parseToolUse("open_url", json.RawMessage(`{"url": 42}`))
	assert.Error(t, err)
}

func TestCreateTools_CoverActionInterface(t *testing.T) {
	names := make(map[string]bool)
	for _, tool := range createTools() {
		names[tool.Name] = true
		assert.Equal(t, "object", tool.InputSchema["type"])
	}

	for _, name := range []entity.ActionName{
		entity.ActionNavigate, entity.ActionFill, entity.ActionClick, entity.ActionValidate,
		entity.ActionScroll, entity.ActionScreenshot, entity.ActionAnalyze, entity.ActionComplete,
	} {
		assert.True(t, names[string(name)], name)
	}
}
