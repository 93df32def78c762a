package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/speedwagon-io/envstream/internal/model"
)

const Version = 1

var (
	// ErrStatus is returned by Decode when the peer reports an error status.
	ErrStatus = errors.New("telemetry message reports error status")

	ErrVersion = errors.New("unsupported telemetry wire version")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		MaxArrayElements: 65536,
		MaxMapPairs:      65536,
	}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

type envelope struct {
	Version    uint        `cbor:"1,keyasint"`
	Status     uint8       `cbor:"2,keyasint"`
	SensorData *sensorData `cbor:"3,keyasint,omitempty"`
	LogData    *logData    `cbor:"4,keyasint,omitempty"`
}

type header struct {
	Version uint  `cbor:"1,keyasint"`
	Status  uint8 `cbor:"2,keyasint"`
}

type sensorData struct {
	Sensors []sensor `cbor:"1,keyasint"`
}

type sensor struct {
	Name     string  `cbor:"1,keyasint"`
	Type     string  `cbor:"2,keyasint"`
	Location string  `cbor:"3,keyasint"`
	Values   []value `cbor:"4,keyasint"`
}

type value struct {
	Name string  `cbor:"1,keyasint"`
	Data float32 `cbor:"2,keyasint"`
	Unit string  `cbor:"3,keyasint"`
}

type logData struct {
	Entries []logEntry `cbor:"1,keyasint"`
}

type logEntry struct {
	Level     string `cbor:"1,keyasint"`
	Message   string `cbor:"2,keyasint"`
	Timestamp uint64 `cbor:"3,keyasint"`
	Source    string `cbor:"4,keyasint,omitempty"`
}

// Encode serializes msg. The same message always produces the same bytes.
func Encode(msg *model.TelemetryMessage) ([]byte, error) {
	env := envelope{
		Version: Version,
		Status:  uint8(msg.Status),
		SensorData: &sensorData{
			Sensors: make([]sensor, 0, len(msg.Snapshots)),
		},
		LogData: &logData{
			Entries: make([]logEntry, 0, len(msg.Diagnostics)),
		},
	}

	for _, snap := range msg.Snapshots {
		readings := snap.Readings()
		s := sensor{
			Name:     snap.Name,
			Type:     snap.Type,
			Location: snap.Location,
			Values:   make([]value, 0, len(readings)),
		}
		for _, r := range readings {
			s.Values = append(s.Values, value{Name: r.Name, Data: r.Value, Unit: r.Unit})
		}
		env.SensorData.Sensors = append(env.SensorData.Sensors, s)
	}

	for _, d := range msg.Diagnostics {
		env.LogData.Entries = append(env.LogData.Entries, logEntry{
			Level:     d.Level,
			Message:   d.Message,
			Timestamp: d.Timestamp,
			Source:    d.Source,
		})
	}

	data, err := encMode.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode telemetry message: %w", err)
	}
	return data, nil
}

// EncodeError serializes a message carrying only an error status.
func EncodeError() ([]byte, error) {
	data, err := encMode.Marshal(header{Version: Version, Status: uint8(model.StatusError)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode error message: %w", err)
	}
	return data, nil
}

// Decode parses a payload produced by Encode. When the payload carries an error
// status, Decode returns a message with only Status set together with ErrStatus.
func Decode(data []byte) (*model.TelemetryMessage, error) {
	var h header
	if err := decMode.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry header: %w", err)
	}

	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}

	if model.Status(h.Status) != model.StatusOK {
		return &model.TelemetryMessage{Status: model.Status(h.Status)}, ErrStatus
	}

	var env envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode telemetry message: %w", err)
	}

	msg := model.NewTelemetryMessage(nil, nil)

	if env.SensorData != nil {
		msg.Snapshots = make([]model.SensorSnapshot, 0, len(env.SensorData.Sensors))
		for _, s := range env.SensorData.Sensors {
			snap := model.NewSnapshot(s.Name, s.Type, s.Location)
			for _, v := range s.Values {
				snap.Push(v.Name, v.Data, v.Unit)
			}
			msg.Snapshots = append(msg.Snapshots, snap)
		}
	}

	if env.LogData != nil {
		msg.Diagnostics = make([]model.DiagnosticEntry, 0, len(env.LogData.Entries))
		for _, e := range env.LogData.Entries {
			msg.Diagnostics = append(msg.Diagnostics, model.DiagnosticEntry{
				Level:     e.Level,
				Source:    e.Source,
				Message:   e.Message,
				Timestamp: e.Timestamp,
			})
		}
	}

	return msg, nil
}
