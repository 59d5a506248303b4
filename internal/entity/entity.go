package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID               uuid.UUID
	Description      string
	Status           TaskStatus
	CreatedAt        time.Time
	CompletedAt      *time.Time
	Steps            []Step
	Result           string
	Error            string
	TurnsUsed        int
	MaxTurns         int
	ScreenshotsTaken int
	MaxScreenshots   int
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

type Step struct {
	ID        uuid.UUID
	Action    ActionName
	Signature string
	Kind      OutcomeKind
	Success   bool
	Message   string
	Timestamp time.Time
}

// FieldDescriptor is one form control as seen at introspection time. Empty
// strings stand for absent attributes.
type FieldDescriptor struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Placeholder string `json:"placeholder"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	TagName     string `json:"tagName"`
	Visible     bool   `json:"visible"`
	Required    bool   `json:"required"`
	Label       string `json:"label"`
	ClassName   string `json:"className"`
}

type ButtonDescriptor struct {
	Text      string `json:"text"`
	Selector  string `json:"selector"`
	Visible   bool   `json:"visible"`
	ClassName string `json:"className"`
}

// AutomationState is the loop-guard bookkeeping of one session.
type AutomationState struct {
	ScreenshotCount   int
	TurnCount         int
	LastAction        string
	RepeatActionCount int
}

type Role string

const (
	RoleFirstName       Role = "firstName"
	RoleLastName        Role = "lastName"
	RoleEmail           Role = "email"
	RolePassword        Role = "password"
	RoleConfirmPassword Role = "confirmPassword"
	RoleUsername        Role = "username"
	RolePhone           Role = "phone"
	RoleAddress         Role = "address"
	RoleCustom          Role = "custom"
)

// Roles lists the closed set of field roles in declaration order.
var Roles = []Role{
	RoleFirstName,
	RoleLastName,
	RoleEmail,
	RolePassword,
	RoleConfirmPassword,
	RoleUsername,
	RolePhone,
	RoleAddress,
	RoleCustom,
}

type ScrollDirection string

const (
	ScrollUp   ScrollDirection = "up"
	ScrollDown ScrollDirection = "down"
)

type PageStructure struct {
	URL     string             `json:"url"`
	Title   string             `json:"title"`
	Fields  []FieldDescriptor  `json:"fields"`
	Buttons []ButtonDescriptor `json:"buttons"`
	Stats   PageStats          `json:"stats"`
}

type PageStats struct {
	TotalFields    int `json:"totalFields"`
	VisibleFields  int `json:"visibleFields"`
	TotalButtons   int `json:"totalButtons"`
	VisibleButtons int `json:"visibleButtons"`
}

type ActionName string

const (
	ActionNavigate   ActionName = "open_url"
	ActionFill       ActionName = "smart_fill_field"
	ActionClick      ActionName = "smart_click_button"
	ActionValidate   ActionName = "validate_field"
	ActionScroll     ActionName = "scroll_page"
	ActionScreenshot ActionName = "take_screenshot"
	ActionAnalyze    ActionName = "analyze_page_structure"
	ActionComplete   ActionName = "complete_task"
)

// PlannedAction is one decision of the planner. Only the fields relevant to
// Name are set.
type PlannedAction struct {
	Name           ActionName
	URL            string
	Role           string
	Value          string
	CustomSelector string
	ButtonText     string
	Direction      string
	Amount         int
	Reason         string
	ExpectedValue  string
}

// MessageContent is one content block of a planner conversation turn.
type MessageContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type AIMessage struct {
	Role    string
	Content interface{}
}

// AIResponse is one planner turn. Content holds the raw assistant blocks so
// the turn can be replayed verbatim in the next request.
type AIResponse struct {
	Action    *PlannedAction
	ToolUseID string
	Thought   string
	Complete  bool
	Result    string
	Content   []MessageContent
}
