package model

// SensorReading is one named measurement of a sensor.
type SensorReading struct {
	Name  string  `json:"name"`
	Value float32 `json:"value"`
	Unit  string  `json:"unit"`
}

// SensorSnapshot is one sensor's complete set of readings at a point in time.
// Readings are keyed by name and keep first-insertion order.
// A snapshot handed to the telemetry channel must not be mutated afterwards.
type SensorSnapshot struct {
	Name     string
	Type     string
	Location string

	readings map[string]int
	ordered  []SensorReading
}

// NewSnapshot returns an empty snapshot for one sensor.
func NewSnapshot(name, sensorType, location string) SensorSnapshot {
	return SensorSnapshot{
		Name:     name,
		Type:     sensorType,
		Location: location,
	}
}

// Push upserts a reading. Pushing an existing name overwrites its value and unit
// in place.
func (s *SensorSnapshot) Push(name string, value float32, unit string) {
	if s.readings == nil {
		s.readings = make(map[string]int)
	}

	if i, ok := s.readings[name]; ok {
		s.ordered[i].Value = value
		s.ordered[i].Unit = unit
		return
	}

	s.readings[name] = len(s.ordered)
	s.ordered = append(s.ordered, SensorReading{Name: name, Value: value, Unit: unit})
}

// Reading looks up a reading by name.
func (s SensorSnapshot) Reading(name string) (SensorReading, bool) {
	i, ok := s.readings[name]
	if !ok {
		return SensorReading{}, false
	}
	return s.ordered[i], true
}

// Readings returns a copy of the readings in insertion order.
func (s SensorSnapshot) Readings() []SensorReading {
	out := make([]SensorReading, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len is the number of distinct readings.
func (s SensorSnapshot) Len() int {
	return len(s.ordered)
}

// Clone returns a deep copy that shares no state with s.
func (s SensorSnapshot) Clone() SensorSnapshot {
	c := NewSnapshot(s.Name, s.Type, s.Location)
	if len(s.ordered) == 0 {
		return c
	}

	c.readings = make(map[string]int, len(s.readings))
	for k, v := range s.readings {
		c.readings[k] = v
	}
	c.ordered = make([]SensorReading, len(s.ordered))
	copy(c.ordered, s.ordered)
	return c
}

// CloneSnapshots deep-copies a snapshot set. A nil input yields an empty, non-nil set.
func CloneSnapshots(in []SensorSnapshot) []SensorSnapshot {
	out := make([]SensorSnapshot, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
