package guard

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_ThirdIdenticalActionIsRejected(t *testing.T) {
	g := NewGate(DefaultLimits())

	assert.Equal(t, Admitted, g.Admit("click_Create Account"))
	assert.Equal(t, Admitted, g.Admit("click_Create Account"))
	assert.Equal(t, PhaseRepeating, g.Phase())

	for i := 0; i < 5; i++ {
		assert.Equal(t, RejectedRepeat, g.Admit("click_Create Account"))
	}

	state := g.State()
	assert.Equal(t, 2, state.TurnCount, "rejected repeats must not consume turns")
	assert.Equal(t, 7, state.RepeatActionCount)
	assert.Equal(t, PhaseBlocked, g.Phase())
}

func TestGate_ChangingSignatureResetsRepeatCount(t *testing.T) {
	g := NewGate(DefaultLimits())

	require.Equal(t, Admitted, g.Admit("fill_email_a@x.com"))
	require.Equal(t, Admitted, g.Admit("fill_email_a@x.com"))
	assert.Equal(t, 2, g.State().RepeatActionCount)

	require.Equal(t, Admitted, g.Admit("fill_password_p1"))
	state := g.State()
	assert.Equal(t, 1, state.RepeatActionCount)
	assert.Equal(t, "fill_password_p1", state.LastAction)
	assert.Equal(t, PhaseProgressing, g.Phase())

	// the earlier signature is fresh again after an intervening action
	assert.Equal(t, Admitted, g.Admit("fill_email_a@x.com"))
	assert.Equal(t, Admitted, g.Admit("fill_email_a@x.com"))
}

func TestGate_FreshState(t *testing.T) {
	g := NewGate(DefaultLimits())

	assert.Equal(t, PhaseFresh, g.Phase())
	assert.False(t, g.Exhausted())
	assert.Zero(t, g.State().TurnCount)
	assert.Zero(t, g.State().RepeatActionCount)
}

func TestGate_TurnCeiling(t *testing.T) {
	g := NewGate(Limits{MaxTurns: 5, MaxScreenshots: 3, MaxRepeats: 2})

	for i := 1; i <= 4; i++ {
		require.Equal(t, Admitted, g.Admit(fmt.Sprintf("navigate_https://example.com/%d", i)))
	}

	assert.Equal(t, RejectedTurnCeiling, g.Admit("analyze_page"))
	assert.Equal(t, 5, g.State().TurnCount)
	assert.True(t, g.Exhausted())

	for i := 0; i < 10; i++ {
		assert.Equal(t, RejectedTurnCeiling, g.Admit(fmt.Sprintf("scroll_down_%d", i)))
	}

	assert.Equal(t, 5, g.State().TurnCount, "turn count never exceeds the ceiling")
	assert.Equal(t, PhaseBlocked, g.Phase())
}

func TestGate_TurnCountBoundedForAnySequence(t *testing.T) {
	const maxTurns = 7
	g := NewGate(Limits{MaxTurns: maxTurns, MaxScreenshots: 3, MaxRepeats: 2})

	signatures := []string{"a", "a", "a", "b", "c", "c", "c", "c", "d", "a", "b", "e", "f", "g", "h"}
	for _, sig := range signatures {
		g.Admit(sig)
		assert.LessOrEqual(t, g.State().TurnCount, maxTurns)
	}
}

func TestGate_ScreenshotQuota(t *testing.T) {
	g := NewGate(DefaultLimits())

	for i := 1; i <= DefaultMaxScreenshots; i++ {
		require.Equal(t, Admitted, g.AdmitScreenshot(fmt.Sprintf("step-%d", i)))
		assert.Equal(t, i, g.State().ScreenshotCount)
	}

	turns := g.State().TurnCount
	last := g.State().LastAction

	assert.Equal(t, RejectedQuota, g.AdmitScreenshot("extra"))
	assert.Equal(t, DefaultMaxScreenshots, g.State().ScreenshotCount)
	assert.Equal(t, turns, g.State().TurnCount, "quota rejection consumes no tracker admission")
	assert.Equal(t, last, g.State().LastAction)
}

func TestGate_ScreenshotRepeatDoesNotCount(t *testing.T) {
	g := NewGate(Limits{MaxTurns: 25, MaxScreenshots: 5, MaxRepeats: 2})

	require.Equal(t, Admitted, g.AdmitScreenshot("debug"))
	require.Equal(t, Admitted, g.AdmitScreenshot("debug"))
	assert.Equal(t, RejectedRepeat, g.AdmitScreenshot("debug"))
	assert.Equal(t, 2, g.State().ScreenshotCount)
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "analyze_page", Signature("analyze_page"))
	assert.Equal(t, "fill_email_a@x.com", Signature("fill", "email", "a@x.com"))
	assert.Equal(t, "scroll_down_500", Signature("scroll", "down", "500"))
}

func TestScreenshotPath(t *testing.T) {
	at := time.UnixMilli(1700000000123)

	tests := []struct {
		name   string
		reason string
		want   string
	}{
		{name: "plain", reason: "debug", want: "screenshot-debug-1700000000123.png"},
		{name: "spaces and slashes", reason: "after submit/click", want: "screenshot-after-submit-click-1700000000123.png"},
		{name: "empty", reason: "", want: "screenshot-debug-1700000000123.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.Join("shots", tt.want), ScreenshotPath("shots", tt.reason, at))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "admitted", Admitted.String())
	assert.Equal(t, "rejected_quota", RejectedQuota.String())
	assert.True(t, Admitted.Admitted())
	assert.False(t, RejectedRepeat.Admitted())
}
