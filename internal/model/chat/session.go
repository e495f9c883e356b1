package chat

import "time"

// Session captures a server-held conversation bound to one therapist. It
// only exists for the lifetime of a voice websocket connection.
type Session struct {
	ID          string    `json:"id"`
	TherapistID string    `json:"therapistId"`
	CreatedAt   time.Time `json:"createdAt"`
}
