package model

import "fmt"

type Status uint8

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// DiagnosticEntry is one log record destined for a remote consumer.
type DiagnosticEntry struct {
	Level     string `json:"level"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	Timestamp uint64 `json:"timestamp"`
}

// TelemetryMessage is the bundle sent in one outbound frame. It is built once per
// send and never mutated after encoding.
type TelemetryMessage struct {
	Status      Status
	Snapshots   []SensorSnapshot
	Diagnostics []DiagnosticEntry
}

func NewTelemetryMessage(snapshots []SensorSnapshot, diagnostics []DiagnosticEntry) *TelemetryMessage {
	if snapshots == nil {
		snapshots = []SensorSnapshot{}
	}
	if diagnostics == nil {
		diagnostics = []DiagnosticEntry{}
	}

	return &TelemetryMessage{
		Status:      StatusOK,
		Snapshots:   snapshots,
		Diagnostics: diagnostics,
	}
}
