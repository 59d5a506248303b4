package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"form-agent/internal/config"
	"form-agent/internal/entity"
	"form-agent/internal/ports"
	"form-agent/pkg/apperr"
	"form-agent/pkg/logg"
	"form-agent/pkg/tracing"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	aiClientName     = "AIClient"
	aiTracer         = "ai.client"
	anthropicVersion = "2023-06-01"
	messagesPath     = "/v1/messages"
)

var _ ports.AIClient = (*Client)(nil)

type Client struct {
	config     *config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	httpClient *http.Client
}

type Params struct {
	fx.In

	Config *config.Config
	Logger *zap.Logger
}

func NewClient(params Params) *Client {
	return &Client{
		config:     params.Config,
		logger:     params.Logger.With(zap.String(logg.Layer, aiClientName)),
		tracer:     otel.Tracer(aiTracer),
		httpClient: &http.Client{},
	}
}

type claudeRequest struct {
	Model      string            `json:"model"`
	MaxTokens  int               `json:"max_tokens"`
	Messages   []claudeMessage   `json:"messages"`
	Tools      []claudeTool      `json:"tools,omitempty"`
	ToolChoice *claudeToolChoice `json:"tool_choice,omitempty"`
}

type claudeMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type claudeTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type claudeToolChoice struct {
	Type                   string `json:"type"`
	DisableParallelToolUse bool   `json:"disable_parallel_tool_use"`
}

type claudeResponse struct {
	Content    []entity.MessageContent `json:"content"`
	StopReason string                  `json:"stop_reason"`
}

func (c *Client) SendMessage(ctx context.Context, messages []entity.AIMessage) (resp *entity.AIResponse, err error) {
	const op = "SendMessage"
	logger := c.logger.With(zap.String(logg.Operation, op))

	ctx, step := tracing.StartSpan(ctx, c.tracer, logger, op,
		attribute.Int("messages_count", len(messages)))
	defer func() {
		step.End(err)
	}()

	logger.Debug("Sending message to AI", zap.Int("messages_count", len(messages)))

	claudeMessages := make([]claudeMessage, len(messages))
	for i, msg := range messages {
		claudeMessages[i] = claudeMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	reqBody := claudeRequest{
		Model:     c.config.AIConfig.Model,
		MaxTokens: c.config.AIConfig.MaxTokens,
		Messages:  claudeMessages,
		Tools:     createTools(),
		// one tool call per turn keeps the loop guard meaningful
		ToolChoice: &claudeToolChoice{Type: "auto", DisableParallelToolUse: true},
	}

	step.AddEvent("marshaling request")

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "marshal_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	endpoint := strings.TrimRight(c.config.AIConfig.BaseURL, "/") + messagesPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "request_create_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.AIConfig.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	step.AddEvent("sending HTTP request")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "http_request_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "read_body_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, apperr.Wrap(op, apperr.CodeAIError, fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, string(body)), map[string]any{
			apperr.MetaReason: "api_error",
			apperr.MetaStage:  apperr.StageAI,
			"status_code":     httpResp.StatusCode,
		})
	}

	step.AddEvent("unmarshaling response")

	var claudeResp claudeResponse

	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return nil, apperr.Wrap(op, apperr.CodeInternal, err, map[string]any{
			apperr.MetaReason: "unmarshal_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	resp, err = parseResponse(&claudeResp)
	if err != nil {
		return nil, apperr.Wrap(op, apperr.CodeAIError, err, map[string]any{
			apperr.MetaReason: "parse_failed",
			apperr.MetaStage:  apperr.StageAI,
		})
	}

	if resp.Action != nil {
		step.SetAttributes(attribute.String("tool", string(resp.Action.Name)))
	}

	return resp, nil
}

func parseResponse(resp *claudeResponse) (*entity.AIResponse, error) {
	aiResp := &entity.AIResponse{
		Complete: resp.StopReason == "end_turn",
		Content:  resp.Content,
	}

	var thoughts []string

	for _, content := range resp.Content {
		switch content.Type {
		case "text":
			if text := strings.TrimSpace(content.Text); text != "" {
				thoughts = append(thoughts, text)
			}
		case "tool_use":
			if aiResp.Action != nil {
				continue
			}

			action, err := parseToolUse(content.Name, content.Input)
			if err != nil {
				return nil, err
			}

			aiResp.ToolUseID = content.ID

			if action.Name == entity.ActionComplete {
				aiResp.Complete = true
				aiResp.Result = action.Reason

				continue
			}

			aiResp.Action = action
		}
	}

	aiResp.Thought = strings.Join(thoughts, "\n")

	if aiResp.Complete && aiResp.Result == "" {
		aiResp.Result = aiResp.Thought
	}

	return aiResp, nil
}

type toolInput struct {
	URL            string   `json:"url"`
	FieldType      string   `json:"fieldType"`
	Value          string   `json:"value"`
	CustomSelector *string  `json:"customSelector"`
	ButtonText     string   `json:"buttonText"`
	ExpectedValue  string   `json:"expectedValue"`
	Direction      string   `json:"direction"`
	Amount         *float64 `json:"amount"`
	Reason         string   `json:"reason"`
	Result         string   `json:"result"`
}

// parseToolUse maps a tool call onto a planned action. Unknown tools are
// passed through by name and rejected by the dispatcher.
func parseToolUse(name string, raw json.RawMessage) (*entity.PlannedAction, error) {
	var in toolInput

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("decode %s input: %w", name, err)
		}
	}

	action := &entity.PlannedAction{Name: entity.ActionName(name)}

	switch action.Name {
	case entity.ActionNavigate:
		action.URL = in.URL
	case entity.ActionFill:
		action.Role = in.FieldType
		action.Value = in.Value

		if in.CustomSelector != nil {
			action.CustomSelector = *in.CustomSelector
		}
	case entity.ActionClick:
		action.ButtonText = in.ButtonText
	case entity.ActionValidate:
		action.Role = in.FieldType
		action.ExpectedValue = in.ExpectedValue

		if in.CustomSelector != nil {
			action.CustomSelector = *in.CustomSelector
		}
	case entity.ActionScroll:
		action.Direction = in.Direction

		if in.Amount != nil {
			action.Amount = int(*in.Amount)
		}
	case entity.ActionScreenshot:
		action.Reason = in.Reason
	case entity.ActionComplete:
		action.Reason = in.Result
	}

	return action, nil
}
