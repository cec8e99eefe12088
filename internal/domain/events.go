package domain

// Event names on the persistent channel. Server→client unless noted.
const (
	// EventStartAgent is a client→server command; it is also re-broadcast
	// verbatim when a start arrives over the HTTP ingress.
	EventStartAgent = "start_agent"
	// EventStopAgent is a client→server command.
	EventStopAgent = "stop_agent"

	EventAgentStatus       = "agent_status"
	EventAgentAction       = "agent_action"
	EventQuestionsDetected = "questions_detected"
	EventScreenshotTaken   = "screenshot_taken"
	EventPageTransition    = "page_transition"
	EventAgentCompleted    = "agent_completed"
	EventAgentError        = "agent_error"
	EventProgressUpdate    = "progress_update"
)

// StatusPayload is the agent_status event body.
type StatusPayload struct {
	Status      Status `json:"status"`
	CurrentPage int    `json:"currentPage"`
	Progress    int    `json:"progress"`
}

// ScreenshotPayload is the screenshot_taken event body.
type ScreenshotPayload struct {
	Filename  string `json:"filename"`
	SessionID string `json:"sessionId"`
	JobURL    string `json:"jobUrl"`
}

// CompletedPayload is the agent_completed event body.
type CompletedPayload struct {
	Status           Status `json:"status"`
	TotalActions     int    `json:"totalActions"`
	QuestionsFound   int    `json:"questionsFound"`
	ScreenshotsTaken int    `json:"screenshotsTaken"`
}

// StartAgentCommand is the start_agent command body.
type StartAgentCommand struct {
	JobURL string `json:"job_url"`
}
