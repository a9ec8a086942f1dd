package question

type AskQuestionsRequest struct {
	WorkspaceID string     `json:"workspace_id"`
	CallID      string     `json:"call_id,omitempty"`
	Questions   []Question `json:"questions"`
}

type AskQuestionsResponse struct {
	CallID  string  `json:"call_id"`
	Answers Answers `json:"answers"`
}

type AnswerQuestionsRequest struct {
	WorkspaceID string  `json:"workspace_id"`
	CallID      string  `json:"call_id"`
	Answers     Answers `json:"answers"`
}

type AnswerQuestionsResponse struct {
	Resolved bool `json:"resolved"`
}

type CancelQuestionsRequest struct {
	WorkspaceID string `json:"workspace_id"`
	CallID      string `json:"call_id"`
	Reason      string `json:"reason,omitempty"`
}

type CancelQuestionsResponse struct {
	Cancelled bool `json:"cancelled"`
}

type ListPendingQuestionsRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type ListPendingQuestionsResponse struct {
	Pending []Pending `json:"pending"`
}

const askQuestionsSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["question"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "header": {"type": "string"},
          "multi_select": {"type": "boolean"},
          "options": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["label"],
              "properties": {
                "label": {"type": "string", "minLength": 1},
                "description": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

const answerQuestionsSchema = `{
  "type": "object",
  "required": ["call_id", "answers"],
  "properties": {
    "call_id": {"type": "string", "minLength": 1},
    "answers": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`
