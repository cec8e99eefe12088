package relay

import (
	"github.com/applyflow/agent-relay/internal/domain"
)

// responseStrategy produces the canned value recorded when the driver fills
// a question of a known kind.
type responseStrategy struct {
	responseType string
	generate     func(q *domain.Question) string
}

var responseStrategies = map[string]responseStrategy{
	"first_name": {responseType: "text", generate: func(*domain.Question) string { return "Alex" }},
	"last_name":  {responseType: "text", generate: func(*domain.Question) string { return "Morgan" }},
	"email":      {responseType: "text", generate: func(*domain.Question) string { return "alex.morgan@example.com" }},
	"phone":      {responseType: "text", generate: func(*domain.Question) string { return "+1 (555) 014-2368" }},
	"resume":     {responseType: "file", generate: func(*domain.Question) string { return "resume_alex_morgan.pdf" }},
	"cover_letter": {responseType: "text", generate: func(*domain.Question) string {
		return "I am excited to apply for this role; my background closely matches the posted requirements."
	}},
	"linkedin_url": {responseType: "text", generate: func(*domain.Question) string { return "https://www.linkedin.com/in/alex-morgan" }},
	"work_authorization": {responseType: "selection", generate: func(*domain.Question) string {
		return "Yes, I am authorized to work in this country."
	}},
}

// genericResponse is the fallback for question ids with no dedicated
// strategy (custom screening questions).
var genericResponse = responseStrategy{
	responseType: "text",
	generate: func(q *domain.Question) string {
		switch q.FieldType {
		case "select", "radio":
			return "Yes"
		case "checkbox":
			return "true"
		case "file":
			return "attachment_alex_morgan.pdf"
		default:
			return "See my attached resume for full details."
		}
	},
}

// responseFor returns the canned value and response type for a question,
// falling back to generic text for unknown ids.
func responseFor(q *domain.Question) (value, responseType string) {
	strategy, ok := responseStrategies[q.QuestionID]
	if !ok {
		strategy = genericResponse
	}
	return strategy.generate(q), strategy.responseType
}
