package dto

// RealtimeMessage is the frame exchanged on the real-time channel
type RealtimeMessage struct {
	Type         string         `json:"type"`
	AssessmentID string         `json:"assessmentId,omitempty"`
	Filters      map[string]any `json:"filters,omitempty"`
	From         string         `json:"from,omitempty"`
	Message      string         `json:"message,omitempty"`
	Members      int            `json:"members,omitempty"`
	Timestamp    int64          `json:"timestamp"`
}

// client events
const (
	MsgTypeJoin         = "join-assessment"
	MsgTypeLeave        = "leave-assessment"
	MsgTypeFilterUpdate = "filter-update"
)

// server events
const (
	MsgTypeJoined         = "joined"
	MsgTypeLeft           = "left"
	MsgTypeFiltersUpdated = "filters-updated"
	MsgTypeError          = "error"
)
