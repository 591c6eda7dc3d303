package realtime

import (
	"encoding/json"
	"fmt"
)

// EventKind discriminates the outbound event envelope
type EventKind string

const (
	EventTaskCreated  EventKind = "task_created"
	EventTaskUpdated  EventKind = "task_updated"
	EventCommentAdded EventKind = "comment_added"
	EventUserActivity EventKind = "user_activity"
)

// Activity values a client may report
const (
	ActivityTyping  = "typing"
	ActivityViewing = "viewing"
)

// GroupKey returns the broadcast group key for a project
func GroupKey(projectID string) string {
	return "project_" + projectID
}

// ActivityEvent is the outbound user-activity payload
type ActivityEvent struct {
	Type      EventKind `json:"type"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Activity  string    `json:"activity"`
	TaskID    *string   `json:"task_id"`
	Timestamp string    `json:"timestamp"`
}

// encodeEvent marshals the wire envelope for an event. Task and comment
// events wrap their record under a kind-specific key; activity events
// carry their own type tag.
func encodeEvent(kind EventKind, data any) ([]byte, error) {
	switch kind {
	case EventTaskCreated, EventTaskUpdated:
		return json.Marshal(struct {
			Type EventKind `json:"type"`
			Task any       `json:"task"`
		}{kind, data})
	case EventCommentAdded:
		return json.Marshal(struct {
			Type    EventKind `json:"type"`
			Comment any       `json:"comment"`
		}{kind, data})
	case EventUserActivity:
		return json.Marshal(data)
	default:
		return nil, fmt.Errorf("unknown event kind: %s", kind)
	}
}
