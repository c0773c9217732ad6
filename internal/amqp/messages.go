package amqp

import (
	"encoding/json"
	"time"

	"cuentas/internal/core"
)

// RecordEvent is the lightweight mutation notification published after a
// record write. It carries identifiers only; consumers that need the full
// record fetch it from the store using the ID.
type RecordEvent struct {
	Op        string    `json:"op"` // create | update | delete
	Kind      core.Kind `json:"kind"`
	RecordID  string    `json:"record_id"`
	Version   int64     `json:"version"` // store revision after the write
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEvent(op string, kind core.Kind, recordID string, version int64) *RecordEvent {
	return &RecordEvent{
		Op:        op,
		Kind:      kind,
		RecordID:  recordID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (e *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var e RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
