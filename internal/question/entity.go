package question

import "time"

type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

type Question struct {
	Question    string   `json:"question"`
	Header      string   `json:"header,omitempty"`
	Options     []Option `json:"options,omitempty"`
	MultiSelect bool     `json:"multi_select,omitempty"`
}

// Answers maps question text to the chosen answer.
type Answers map[string]string

// Pending is an unanswered prompt, keyed by workspace and call id.
type Pending struct {
	WorkspaceID string     `json:"workspace_id"`
	CallID      string     `json:"call_id"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Outcome completes a pending prompt: either Answers or a Canceled error.
type Outcome struct {
	Answers Answers
	Err     error
}
