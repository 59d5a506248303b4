package ports

import (
	"context"
	"form-agent/internal/entity"
	"time"
)

// BrowserManager is the page capability the executors drive. Every method
// acts on the single active page.
type BrowserManager interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady() bool

	Navigate(ctx context.Context, url string, timeout time.Duration) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	FormFields(ctx context.Context) ([]entity.FieldDescriptor, error)
	Buttons(ctx context.Context) ([]entity.ButtonDescriptor, error)

	// FillField waits for the element, scrolls it into view, triple-clicks to
	// select existing content, overwrites it with value and blurs it.
	FillField(ctx context.Context, selector, value string, timeout time.Duration) error
	// FillSelector fills the first element matching an arbitrary selector.
	FillSelector(ctx context.Context, selector, value string, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	InputValue(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Wheel(ctx context.Context, deltaY int) error
	Screenshot(ctx context.Context, path string) error
}

type AIClient interface {
	SendMessage(ctx context.Context, messages []entity.AIMessage) (*entity.AIResponse, error)
}
