package models

import "time"

// Utterance is one unit of raw input text supplied by the ingestion adapter
// (chat, voice or SMS). Utterances are immutable; memories reference them by
// id, never own them.
type Utterance struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Speaker        string    `json:"speaker,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
}
