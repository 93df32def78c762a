// Package wire encodes telemetry messages for streaming consumers.
//
// The payload is a single CBOR map using Core Deterministic Encoding
// (RFC 8949 §4.2) with small integer keys. Layout, version 1:
//
//	1: version          uint
//	2: status           uint (0 = OK, 1 = ERROR)
//	3: sensor_data      map
//	     1: sensors     array of
//	          1: sensor_name      text
//	          2: sensor_type      text
//	          3: sensor_location  text
//	          4: values           array of {1: value_name, 2: value_data float32, 3: value_unit}
//	4: log_data         map
//	     1: entries     array of
//	          1: log_level        text
//	          2: log_message      text
//	          3: log_timestamp    uint (unix seconds)
//	          4: log_source       text, optional
//
// Absent sections decode as empty sequences. Unknown keys are ignored so that
// later versions can add fields without breaking older monitors.
package wire
