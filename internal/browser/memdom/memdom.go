// Package memdom is an in-memory BrowserManager. Documents are registered per
// URL and every call is recorded, which makes it the page the executor and
// session tests run against.
package memdom

import (
	"context"
	"errors"
	"fmt"
	"form-agent/internal/entity"
	"form-agent/internal/matcher"
	"form-agent/internal/ports"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotLaunched  = errors.New("memdom: browser not launched")
	ErrUnknownURL   = errors.New("memdom: net::ERR_NAME_NOT_RESOLVED")
	ErrNoElement    = errors.New("memdom: no element matches selector")
	ErrHiddenTarget = errors.New("memdom: element is not visible")
)

// pngHeader is what Screenshot writes; enough for a file to exist and be
// recognised as an image.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

var _ ports.BrowserManager = (*Browser)(nil)

type Document struct {
	Title   string
	Fields  []entity.FieldDescriptor
	Buttons []entity.ButtonDescriptor
}

type Browser struct {
	mu          sync.Mutex
	launched    bool
	documents   map[string]Document
	url         string
	current     Document
	scrollY     int
	calls       []string
	failures    map[string]error
	screenshots []string
}

func New() *Browser {
	return &Browser{
		documents: make(map[string]Document),
		failures:  make(map[string]error),
	}
}

// AddDocument registers the document served at url.
func (b *Browser) AddDocument(url string, doc Document) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.documents[url] = doc
}

// Load makes doc the current page without a navigation.
func (b *Browser) Load(url string, doc Document) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.documents[url] = doc
	b.url = url
	b.current = cloneDocument(doc)
}

// FailOn makes every later call of method return err. A nil err clears it.
func (b *Browser) FailOn(method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failures, method)

		return
	}

	b.failures[method] = err
}

func (b *Browser) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.calls...)
}

// CallCount counts recorded calls of method.
func (b *Browser) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			n++
		}
	}

	return n
}

func (b *Browser) Screenshots() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.screenshots...)
}

func (b *Browser) ScrollY() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.scrollY
}

// Value reads the current value of the first field selector resolves to.
func (b *Browser) Value(selector string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.findField(selector)
	if i < 0 {
		return "", false
	}

	return b.current.Fields[i].Value, true
}

func (b *Browser) Launch(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Launch"); err != nil {
		return err
	}

	b.launched = true

	return nil
}

func (b *Browser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, "Close")
	b.launched = false

	return nil
}

func (b *Browser) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.launched
}

func (b *Browser) Navigate(ctx context.Context, url string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Navigate", url); err != nil {
		return err
	}

	doc, ok := b.documents[url]
	if !ok {
		return fmt.Errorf("page.goto: %w at %s", ErrUnknownURL, url)
	}

	b.url = url
	b.current = cloneDocument(doc)
	b.scrollY = 0

	return nil
}

func (b *Browser) URL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "URL"); err != nil {
		return "", err
	}

	return b.url, nil
}

func (b *Browser) Title(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Title"); err != nil {
		return "", err
	}

	return b.current.Title, nil
}

func (b *Browser) FormFields(ctx context.Context) ([]entity.FieldDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "FormFields"); err != nil {
		return nil, err
	}

	return append([]entity.FieldDescriptor{}, b.current.Fields...), nil
}

func (b *Browser) Buttons(ctx context.Context) ([]entity.ButtonDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Buttons"); err != nil {
		return nil, err
	}

	return append([]entity.ButtonDescriptor{}, b.current.Buttons...), nil
}

func (b *Browser) FillField(ctx context.Context, selector, value string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "FillField", selector, value); err != nil {
		return err
	}

	return b.fill(selector, value)
}

func (b *Browser) FillSelector(ctx context.Context, selector, value string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "FillSelector", selector, value); err != nil {
		return err
	}

	return b.fill(selector, value)
}

func (b *Browser) fill(selector, value string) error {
	i := b.findField(selector)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	b.current.Fields[i].Value = value

	return nil
}

func (b *Browser) ScrollIntoView(ctx context.Context, selector string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "ScrollIntoView", selector); err != nil {
		return err
	}

	if b.findButton(selector) < 0 && b.findField(selector) < 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	return nil
}

func (b *Browser) Click(ctx context.Context, selector string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Click", selector); err != nil {
		return err
	}

	i := b.findButton(selector)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	if !b.current.Buttons[i].Visible {
		return fmt.Errorf("%w: %s", ErrHiddenTarget, selector)
	}

	return nil
}

func (b *Browser) InputValue(ctx context.Context, selector string, _ time.Duration) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "InputValue", selector); err != nil {
		return "", err
	}

	i := b.findField(selector)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}

	return b.current.Fields[i].Value, nil
}

func (b *Browser) Wheel(ctx context.Context, deltaY int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Wheel", fmt.Sprint(deltaY)); err != nil {
		return err
	}

	b.scrollY += deltaY
	if b.scrollY < 0 {
		b.scrollY = 0
	}

	return nil
}

func (b *Browser) Screenshot(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.begin(ctx, "Screenshot", path); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(path, pngHeader, 0o644); err != nil {
		return err
	}

	b.screenshots = append(b.screenshots, path)

	return nil
}

// begin records the call and applies the launch, context and injected
// failure checks shared by every page operation. b.mu must be held.
func (b *Browser) begin(ctx context.Context, method string, args ...string) error {
	call := method
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	b.calls = append(b.calls, call)

	if err := ctx.Err(); err != nil {
		return err
	}

	if err, ok := b.failures[method]; ok {
		return err
	}

	if method != "Launch" && !b.launched {
		return ErrNotLaunched
	}

	return nil
}

func (b *Browser) findField(selector string) int {
	for i, f := range b.current.Fields {
		for _, s := range fieldSelectors(f) {
			if s == selector {
				return i
			}
		}
	}

	return -1
}

func (b *Browser) findButton(selector string) int {
	for i, btn := range b.current.Buttons {
		if btn.Selector == selector {
			return i
		}
	}

	return -1
}

// fieldSelectors lists the selectors a real document would resolve to f.
func fieldSelectors(f entity.FieldDescriptor) []string {
	tag := f.TagName
	if tag == "" {
		tag = "input"
	}

	var out []string
	if f.ID != "" {
		out = append(out, "#"+f.ID, `[id="`+matcher.QuoteAttr(f.ID)+`"]`)
	}

	if f.Name != "" {
		quoted := matcher.QuoteAttr(f.Name)
		out = append(out, tag+`[name="`+quoted+`"]`, `[name="`+quoted+`"]`)
	}

	if f.Placeholder != "" {
		quoted := matcher.QuoteAttr(f.Placeholder)
		out = append(out, tag+`[placeholder="`+quoted+`"]`, `[placeholder="`+quoted+`"]`)
	}

	return out
}

func cloneDocument(doc Document) Document {
	return Document{
		Title:   doc.Title,
		Fields:  append([]entity.FieldDescriptor(nil), doc.Fields...),
		Buttons: append([]entity.ButtonDescriptor(nil), doc.Buttons...),
	}
}
