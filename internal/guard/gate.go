// Package guard implements the loop guard of an automation session: the
// action tracker that refuses repeated or over-budget actions, and the
// screenshot governor layered on top of it.
//
// A Gate is owned by exactly one session loop and is not safe for concurrent
// use. It is the only writer of its AutomationState.
package guard

import (
	"fmt"
	"form-agent/internal/entity"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultMaxTurns       = 25
	DefaultMaxScreenshots = 3
	DefaultMaxRepeats     = 2
)

type Decision int

const (
	Admitted Decision = iota
	RejectedRepeat
	RejectedTurnCeiling
	RejectedQuota
)

func (d Decision) String() string {
	switch d {
	case Admitted:
		return "admitted"
	case RejectedRepeat:
		return "rejected_repeat"
	case RejectedTurnCeiling:
		return "rejected_turn_ceiling"
	case RejectedQuota:
		return "rejected_quota"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

func (d Decision) Admitted() bool {
	return d == Admitted
}

type Phase string

const (
	PhaseFresh       Phase = "fresh"
	PhaseProgressing Phase = "progressing"
	PhaseRepeating   Phase = "repeating"
	PhaseBlocked     Phase = "blocked"
)

type Limits struct {
	MaxTurns       int
	MaxScreenshots int
	MaxRepeats     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxTurns:       DefaultMaxTurns,
		MaxScreenshots: DefaultMaxScreenshots,
		MaxRepeats:     DefaultMaxRepeats,
	}
}

type Gate struct {
	limits Limits
	state  entity.AutomationState
}

func NewGate(limits Limits) *Gate {
	if limits.MaxRepeats <= 0 {
		limits.MaxRepeats = DefaultMaxRepeats
	}

	return &Gate{limits: limits}
}

// Admit records an attempted action and decides whether it may run. A
// signature seen more than MaxRepeats times in a row is refused without
// consuming a turn. Otherwise a turn is consumed and the action runs only
// while the turn count stays below MaxTurns.
func (g *Gate) Admit(signature string) Decision {
	if g.state.LastAction == signature && g.state.RepeatActionCount > 0 {
		g.state.RepeatActionCount++
	} else {
		g.state.LastAction = signature
		g.state.RepeatActionCount = 1
	}

	if g.state.RepeatActionCount > g.limits.MaxRepeats {
		return RejectedRepeat
	}

	// the ceiling is sticky: TurnCount never grows past MaxTurns
	if g.state.TurnCount >= g.limits.MaxTurns {
		return RejectedTurnCeiling
	}

	g.state.TurnCount++
	if g.state.TurnCount < g.limits.MaxTurns {
		return Admitted
	}

	return RejectedTurnCeiling
}

// AdmitScreenshot applies the screenshot quota before the tracker. A request
// over quota does not touch the tracker at all.
func (g *Gate) AdmitScreenshot(reason string) Decision {
	if g.state.ScreenshotCount >= g.limits.MaxScreenshots {
		return RejectedQuota
	}

	decision := g.Admit(Signature("screenshot", reason))
	if decision.Admitted() {
		g.state.ScreenshotCount++
	}

	return decision
}

func (g *Gate) State() entity.AutomationState {
	return g.state
}

func (g *Gate) Limits() Limits {
	return g.limits
}

func (g *Gate) Exhausted() bool {
	return g.state.TurnCount >= g.limits.MaxTurns
}

func (g *Gate) Phase() Phase {
	switch {
	case g.state.RepeatActionCount == 0:
		return PhaseFresh
	case g.state.RepeatActionCount > g.limits.MaxRepeats || g.Exhausted():
		return PhaseBlocked
	case g.state.RepeatActionCount == 1:
		return PhaseProgressing
	default:
		return PhaseRepeating
	}
}

// Signature joins an action kind and its salient arguments into the key
// used for repeat detection.
func Signature(kind string, args ...string) string {
	if len(args) == 0 {
		return kind
	}

	return kind + "_" + strings.Join(args, "_")
}

var unsafeReason = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ScreenshotPath names a capture after its reason and timestamp so that
// captures within one session never collide.
func ScreenshotPath(dir, reason string, at time.Time) string {
	tag := strings.Trim(unsafeReason.ReplaceAllString(reason, "-"), "-")
	if tag == "" {
		tag = "debug"
	}

	return filepath.Join(dir, fmt.Sprintf("screenshot-%s-%d.png", tag, at.UnixMilli()))
}
