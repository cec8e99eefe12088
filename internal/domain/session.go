// Package domain defines the core types shared by the relay, ingress, and store layers.
package domain

import (
	"sort"
	"time"
)

// Status describes the lifecycle state of an autofill session.
type Status string

const (
	// StatusRunning means the activity driver is emitting events for the session.
	StatusRunning Status = "running"
	// StatusStopped means the session was pre-empted by a newer start or torn down on disconnect.
	StatusStopped Status = "stopped"
	// StatusIdle means the owner explicitly stopped the session.
	StatusIdle Status = "idle"
	// StatusCompleted means the session reached its action ceiling.
	StatusCompleted Status = "completed"
	// StatusError means the session failed due to an operator-visible fault.
	StatusError Status = "error"
)

// Terminal reports whether a status ends the session's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusIdle || s == StatusCompleted || s == StatusError
}

// Question is one detected form field in the target job application.
type Question struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	FieldType    string `json:"field_type"`
	Required     bool   `json:"required"`
	Filled       bool   `json:"filled"`
	Response     string `json:"response,omitempty"`
	ResponseType string `json:"response_type,omitempty"`
}

// Action is one autofill step emitted by the activity driver.
type Action struct {
	Timestamp  int64  `json:"timestamp"`
	ActionType string `json:"action_type"`
	Page       int    `json:"page"`
	QuestionID string `json:"question_id,omitempty"`
	Value      string `json:"value,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// Session is one tracked autofill run.
//
// Actions and Screenshots are append-only while the status is running and are
// never mutated afterwards. Questions entries flip Filled false→true at most
// once per run. All mutation happens under the owning store's lock.
type Session struct {
	SessionID    string
	ConnectionID string // empty for HTTP-originated starts
	TargetURL    string
	StartedAt    time.Time
	Status       Status
	CurrentPage  int
	Actions      []Action
	Questions    map[string]*Question
	Screenshots  []string
}

// QuestionsFilled counts questions that have been filled so far.
func (s *Session) QuestionsFilled() int {
	n := 0
	for _, q := range s.Questions {
		if q.Filled {
			n++
		}
	}
	return n
}

// QuestionList returns the full current question list as a snapshot slice,
// ordered by question id for stable output.
func (s *Session) QuestionList() []Question {
	out := make([]Question, 0, len(s.Questions))
	for _, q := range s.Questions {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
