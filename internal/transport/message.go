package transport

import "encoding/json"

// Inbound message types.
const (
	TypeTranscript           = "transcript"
	TypeEditPlan             = "edit_plan"
	TypeNoEditNeeded         = "no_edit_needed"
	TypeModificationComplete = "modification_complete"
)

type HistoryItem struct {
	Utterance    string `json:"utterance"`
	EditPlan     string `json:"edit_plan"`
	ModifiedText string `json:"modified_text"`
}

// Message is one JSON frame pushed by the backend.
type Message struct {
	Type string `json:"type"`

	// transcript; IsFinal is nil when the backend only sends final segments
	Text    string `json:"text,omitempty"`
	IsFinal *bool  `json:"is_final,omitempty"`

	// edit_plan, no_edit_needed, modification_complete
	Utterance    string        `json:"utterance,omitempty"`
	EditPlan     string        `json:"edit_plan,omitempty"`
	ModifiedText string        `json:"modified_text,omitempty"`
	OriginalText string        `json:"original_text,omitempty"`
	History      []HistoryItem `json:"history,omitempty"`

	// opaque; logged only
	HistorySummary json.RawMessage `json:"history_summary,omitempty"`
}

// Final reports whether a transcript message carries a committed segment.
func (m Message) Final() bool {
	return m.IsFinal == nil || *m.IsFinal
}
