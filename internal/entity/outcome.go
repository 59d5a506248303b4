package entity

import (
	"encoding/json"
	"fmt"
)

type OutcomeKind string

const (
	OutcomeOK            OutcomeKind = "ok"
	OutcomeBlocked       OutcomeKind = "blocked"
	OutcomeQuotaExceeded OutcomeKind = "quota_exceeded"
	OutcomeNotFound      OutcomeKind = "not_found"
	OutcomeInvalid       OutcomeKind = "invalid"
	OutcomeFailed        OutcomeKind = "failed"
)

// Outcome is what an executor hands back across the action boundary. It is
// never an error: failures are described by Kind and Message, with the
// underlying error kept in Cause for logs and spans.
type Outcome struct {
	Kind      OutcomeKind
	Message   string
	Structure *PageStructure
	Cause     error
}

func Ok(message string) Outcome {
	return Outcome{Kind: OutcomeOK, Message: message}
}

func OkStructure(structure *PageStructure) Outcome {
	return Outcome{Kind: OutcomeOK, Structure: structure}
}

func Fail(kind OutcomeKind, cause error, format string, args ...any) Outcome {
	return Outcome{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Text renders the outcome for the planner: the message, or the JSON form of
// the page structure for analysis results.
func (o Outcome) Text() string {
	if o.Structure == nil {
		return o.Message
	}

	data, err := json.Marshal(struct {
		Type string         `json:"type"`
		JSON *PageStructure `json:"json"`
	}{Type: "json", JSON: o.Structure})
	if err != nil {
		return fmt.Sprintf("Analysis failed: %v", err)
	}

	return string(data)
}
