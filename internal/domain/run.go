package domain

import (
	"time"
)

// RunRecord is the archived summary of a finished session.
type RunRecord struct {
	SessionID        string    `json:"session_id"`
	JobURL           string    `json:"job_url"`
	Status           Status    `json:"status"`
	TotalActions     int       `json:"total_actions"`
	QuestionsFound   int       `json:"questions_found"`
	QuestionsFilled  int       `json:"questions_filled"`
	ScreenshotsTaken int       `json:"screenshots_taken"`
	StartedAt        time.Time `json:"started_at"`
	EndedAt          time.Time `json:"ended_at"`
}
