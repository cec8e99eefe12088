package relay

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/applyflow/agent-relay/internal/domain"
)

// boardPattern describes a recognized job-board domain. Recognized boards
// yield extra detected questions on top of the base set, and carry their own
// screenshot filename rotation.
type boardPattern struct {
	hostFragment string
	name         string
	bonusMin     int
	bonusMax     int
	screenshots  []string
}

var boardPatterns = []boardPattern{
	{
		hostFragment: "appcast.io",
		name:         "appcast",
		bonusMin:     10,
		bonusMax:     25,
		screenshots:  []string{"appcast_application_form.png", "appcast_contact_details.png", "appcast_screening_questions.png", "appcast_review_submit.png"},
	},
	{
		hostFragment: "greenhouse.io",
		name:         "greenhouse",
		bonusMin:     6,
		bonusMax:     14,
		screenshots:  []string{"greenhouse_application.png", "greenhouse_custom_questions.png", "greenhouse_eeo_survey.png"},
	},
	{
		hostFragment: "lever.co",
		name:         "lever",
		bonusMin:     4,
		bonusMax:     10,
		screenshots:  []string{"lever_application.png", "lever_additional_info.png"},
	},
	{
		hostFragment: "myworkdayjobs.com",
		name:         "workday",
		bonusMin:     12,
		bonusMax:     28,
		screenshots:  []string{"workday_account.png", "workday_experience.png", "workday_questionnaire.png", "workday_review.png"},
	},
	{
		hostFragment: "indeed.com",
		name:         "indeed",
		bonusMin:     5,
		bonusMax:     12,
		screenshots:  []string{"indeed_apply.png", "indeed_employer_questions.png"},
	},
}

var genericScreenshots = []string{"application_form.png", "personal_details.png", "resume_upload.png", "review_submit.png"}

// matchBoard returns the pattern for a recognized job-board URL, or nil.
func matchBoard(jobURL string) *boardPattern {
	lowered := strings.ToLower(jobURL)
	for i := range boardPatterns {
		if strings.Contains(lowered, boardPatterns[i].hostFragment) {
			return &boardPatterns[i]
		}
	}
	return nil
}

// baseQuestions is the standard field set detected on every application form.
func baseQuestions() []*domain.Question {
	return []*domain.Question{
		{QuestionID: "first_name", QuestionText: "First Name", FieldType: "text", Required: true},
		{QuestionID: "last_name", QuestionText: "Last Name", FieldType: "text", Required: true},
		{QuestionID: "email", QuestionText: "Email Address", FieldType: "email", Required: true},
		{QuestionID: "phone", QuestionText: "Phone Number", FieldType: "tel", Required: true},
		{QuestionID: "resume", QuestionText: "Upload Resume", FieldType: "file", Required: true},
		{QuestionID: "cover_letter", QuestionText: "Cover Letter", FieldType: "textarea", Required: false},
		{QuestionID: "linkedin_url", QuestionText: "LinkedIn Profile", FieldType: "url", Required: false},
		{QuestionID: "work_authorization", QuestionText: "Are you authorized to work in this country?", FieldType: "select", Required: true},
	}
}

var extraQuestionTexts = []string{
	"Why do you want to work here?",
	"Describe a challenging project you led.",
	"What are your salary expectations?",
	"When can you start?",
	"Do you require visa sponsorship?",
	"How many years of relevant experience do you have?",
	"Are you willing to relocate?",
	"Describe your experience with the tools listed in the posting.",
}

var extraFieldTypes = []string{"text", "textarea", "select", "radio", "checkbox"}

// detectQuestions builds the full detected-field state for a job URL: the
// base set plus a board-specific bonus count of screening questions.
func detectQuestions(jobURL string) map[string]*domain.Question {
	questions := make(map[string]*domain.Question)
	for _, q := range baseQuestions() {
		questions[q.QuestionID] = q
	}

	if board := matchBoard(jobURL); board != nil {
		bonus := board.bonusMin + rand.IntN(board.bonusMax-board.bonusMin+1)
		for i := 0; i < bonus; i++ {
			q := &domain.Question{
				QuestionID:   fmt.Sprintf("custom_question_%d", i+1),
				QuestionText: extraQuestionTexts[i%len(extraQuestionTexts)],
				FieldType:    extraFieldTypes[i%len(extraFieldTypes)],
				Required:     i%2 == 0,
			}
			questions[q.QuestionID] = q
		}
	}

	return questions
}

// screenshotName picks the next filename from the board's rotation.
func screenshotName(jobURL string, taken int) string {
	rotation := genericScreenshots
	if board := matchBoard(jobURL); board != nil {
		rotation = board.screenshots
	}
	return rotation[taken%len(rotation)]
}
