package domain

// ChangeType names what happened to a document.
type ChangeType string

const (
	ChangeSaved   ChangeType = "saved"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent is published on the realtime channel of its collection.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	Collection Collection `json:"collection"`
	ID         string     `json:"id"`
}

// Session is the value stored under a bearer token in the session cache.
type Session struct {
	UserID string `json:"userId"`
}
