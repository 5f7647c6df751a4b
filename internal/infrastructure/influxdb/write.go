package influxdb

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by Fleet Core.
const (
	MeasurementTelemetry = "telemetry"
	MeasurementActuation = "actuation"
)

// WriteTelemetry records one telemetry snapshot.
//
// Numeric and boolean fields are written; strings, nested objects and
// arrays are skipped. A snapshot with nothing writable produces no point.
//
//	client.WriteTelemetry("SENSOR-AB12", "sensor", map[string]any{"tC": 21.5}, time.Now())
func (c *Client) WriteTelemetry(key, class string, fields map[string]any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	values := pointFields(fields)
	if len(values) == 0 {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementTelemetry,
		map[string]string{
			"device_id": key,
			"class":     class,
		},
		values,
		at,
	))
}

// WriteActuation records a channel command the broker accepted.
func (c *Client) WriteActuation(key string, channel int, on bool, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		MeasurementActuation,
		map[string]string{
			"device_id": key,
			"gpio":      strconv.Itoa(channel),
		},
		map[string]interface{}{
			"state": on,
		},
		at,
	))
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func pointFields(fields map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for name, v := range fields {
		switch n := v.(type) {
		case float64, float32, int, int32, int64, uint64, bool:
			out[name] = n
		case json.Number:
			if f, err := n.Float64(); err == nil {
				out[name] = f
			}
		}
	}
	return out
}
