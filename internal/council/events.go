package council

// EventType identifies a progress event in the deliberation stream.
type EventType string

const (
	EventStage0Start        EventType = "stage0_start"
	EventStage0Decomposing  EventType = "stage0_decomposing"
	EventStage0SubQueries   EventType = "stage0_sub_queries"
	EventStage0Researching  EventType = "stage0_researching"
	EventStage0SubResult    EventType = "stage0_sub_result"
	EventStage0Synthesizing EventType = "stage0_synthesizing"
	EventStage0Complete     EventType = "stage0_complete"
	EventStage1Start        EventType = "stage1_start"
	EventStage1Complete     EventType = "stage1_complete"
	EventStage2Start        EventType = "stage2_start"
	EventStage2Complete     EventType = "stage2_complete"
	EventStage3Start        EventType = "stage3_start"
	EventStage3Complete     EventType = "stage3_complete"
	EventTitleComplete      EventType = "title_complete"
	EventComplete           EventType = "complete"
	EventError              EventType = "error"
)

// Event is one entry in the ordered progress stream. Data carries the
// stage payload, Metadata the ephemeral extras on stage2_complete, and
// Message a human-readable description on error events. Err is the
// underlying terminal error, for in-process consumers only.
type Event struct {
	Type     EventType   `json:"type"`
	Data     interface{} `json:"data,omitempty"`
	Metadata interface{} `json:"metadata,omitempty"`
	Message  string      `json:"message,omitempty"`
	Err      error       `json:"-"`
}
