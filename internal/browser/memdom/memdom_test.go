package memdom

import (
	"context"
	"errors"
	"form-agent/internal/entity"
	"form-agent/internal/matcher"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageURL = "https://example.test/form"

func newLaunched(t *testing.T) *Browser {
	t.Helper()

	b := New()
	b.AddDocument(pageURL, Document{
		Title: "Form",
		Fields: []entity.FieldDescriptor{
			{ID: "email", Type: "email", TagName: "input", Visible: true},
			{Name: "nick", Placeholder: `Your "nick"`, TagName: "input", Visible: true},
		},
		Buttons: []entity.ButtonDescriptor{
			{Text: "Send", Selector: "#send", Visible: true},
			{Text: "Old", Selector: "#old", Visible: false},
		},
	})
	require.NoError(t, b.Launch(context.Background()))
	require.NoError(t, b.Navigate(context.Background(), pageURL, 0))

	return b
}

func TestNotLaunched(t *testing.T) {
	b := New()

	assert.False(t, b.IsReady())
	assert.ErrorIs(t, b.Navigate(context.Background(), pageURL, 0), ErrNotLaunched)
}

func TestFillAndReadBack(t *testing.T) {
	b := newLaunched(t)
	ctx := context.Background()

	require.NoError(t, b.FillField(ctx, "#email", "a@b.test", 0))
	require.NoError(t, b.FillSelector(ctx, `input[placeholder="Your \"nick\""]`, "jd", 0))

	got, err := b.InputValue(ctx, `[id="email"]`, 0)
	require.NoError(t, err)
	assert.Equal(t, "a@b.test", got)

	nick, ok := b.Value(`[name="nick"]`)
	require.True(t, ok)
	assert.Equal(t, "jd", nick)

	assert.ErrorIs(t, b.FillField(ctx, "#missing", "x", 0), ErrNoElement)
}

func TestQuotedAttributesResolveLikeLocator(t *testing.T) {
	b := New()
	fields := []entity.FieldDescriptor{
		{ID: `pick"me`, TagName: "input", Visible: true},
		{Name: `user"name`, TagName: "input", Visible: true},
		{Placeholder: `C:\path`, TagName: "textarea", Visible: true},
	}
	b.AddDocument(pageURL, Document{Fields: fields})
	require.NoError(t, b.Launch(context.Background()))
	require.NoError(t, b.Navigate(context.Background(), pageURL, 0))

	for _, f := range fields {
		selector, err := matcher.Locator(f)
		require.NoError(t, err)

		require.NoError(t, b.FillField(context.Background(), selector, "ok", 0), selector)

		got, ok := b.Value(selector)
		require.True(t, ok, selector)
		assert.Equal(t, "ok", got)
	}
}

func TestNavigateResetsDocument(t *testing.T) {
	b := newLaunched(t)
	ctx := context.Background()

	require.NoError(t, b.FillField(ctx, "#email", "a@b.test", 0))
	require.NoError(t, b.Wheel(ctx, 300))
	require.NoError(t, b.Navigate(ctx, pageURL, 0))

	value, _ := b.Value("#email")
	assert.Empty(t, value)
	assert.Zero(t, b.ScrollY())
}

func TestClickVisibility(t *testing.T) {
	b := newLaunched(t)
	ctx := context.Background()

	assert.NoError(t, b.Click(ctx, "#send", 0))
	assert.ErrorIs(t, b.Click(ctx, "#old", 0), ErrHiddenTarget)
	assert.ErrorIs(t, b.Click(ctx, "#none", 0), ErrNoElement)
}

func TestWheelClampsAtTop(t *testing.T) {
	b := newLaunched(t)
	ctx := context.Background()

	require.NoError(t, b.Wheel(ctx, 200))
	require.NoError(t, b.Wheel(ctx, -500))

	assert.Zero(t, b.ScrollY())
	assert.Equal(t, 2, b.CallCount("Wheel"))
}

func TestFailOnAndContext(t *testing.T) {
	b := newLaunched(t)
	boom := errors.New("boom")

	b.FailOn("Title", boom)
	_, err := b.Title(context.Background())
	assert.ErrorIs(t, err, boom)

	b.FailOn("Title", nil)
	title, err := b.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Form", title)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.URL(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScreenshotWritesFile(t *testing.T) {
	b := newLaunched(t)
	path := filepath.Join(t.TempDir(), "shots", "a.png")

	require.NoError(t, b.Screenshot(context.Background(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, []string{path}, b.Screenshots())
}
