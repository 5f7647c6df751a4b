package influxdb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/fleet-core/internal/infrastructure/config"
)

type recordingWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *recordingWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	w.points = append(w.points, p)
	w.mu.Unlock()
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func tagValue(p *write.Point, key string) string {
	for _, tag := range p.TagList() {
		if tag.Key == key {
			return tag.Value
		}
	}
	return ""
}

func fieldValue(p *write.Point, key string) (interface{}, bool) {
	for _, f := range p.FieldList() {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestWriteTelemetry(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, config.InfluxDBConfig{Bucket: "telemetry"})
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	c.WriteTelemetry("SENSOR-AB12", "sensor", map[string]any{
		"tC":     21.5,
		"motion": true,
		"hum":    json.Number("40"),
		"label":  "warm",
		"nested": map[string]any{"x": 1},
	}, at)

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementTelemetry {
		t.Errorf("measurement = %q", p.Name())
	}
	if got := tagValue(p, "device_id"); got != "SENSOR-AB12" {
		t.Errorf("device_id tag = %q", got)
	}
	if got := tagValue(p, "class"); got != "sensor" {
		t.Errorf("class tag = %q", got)
	}
	if !p.Time().Equal(at) {
		t.Errorf("time = %v, want %v", p.Time(), at)
	}
	if _, ok := fieldValue(p, "tC"); !ok {
		t.Error("tC field missing")
	}
	if _, ok := fieldValue(p, "hum"); !ok {
		t.Error("hum field missing")
	}
	if _, ok := fieldValue(p, "label"); ok {
		t.Error("string field must be skipped")
	}
	if _, ok := fieldValue(p, "nested"); ok {
		t.Error("object field must be skipped")
	}
}

func TestWriteTelemetry_NothingNumeric(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, config.InfluxDBConfig{})

	c.WriteTelemetry("SENSOR-AB12", "sensor", map[string]any{"fw": "1.0"}, time.Now())

	if len(w.points) != 0 {
		t.Errorf("points = %d, want 0", len(w.points))
	}
}

func TestWriteActuation(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, config.InfluxDBConfig{})

	c.WriteActuation("ACTUATOR-BEEF", 3, true, time.Now())

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	p := w.points[0]
	if p.Name() != MeasurementActuation {
		t.Errorf("measurement = %q", p.Name())
	}
	if got := tagValue(p, "gpio"); got != "3" {
		t.Errorf("gpio tag = %q", got)
	}
	if v, _ := fieldValue(p, "state"); v != true {
		t.Errorf("state field = %v", v)
	}
}

func TestClose_FlushesOnceAndStopsWrites(t *testing.T) {
	w := &recordingWriter{}
	c := newWithWriter(w, config.InfluxDBConfig{})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}

	c.WriteActuation("ACTUATOR-BEEF", 1, false, time.Now())
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Error("writes after Close must be dropped")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newWithWriter(&recordingWriter{}, config.InfluxDBConfig{})

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	ch := make(chan error, 1)
	ch <- errors.New("bucket not found")
	close(ch)
	c.handleWriteErrors(ch)

	err := <-got
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", err)
	}
}

func TestTelemetryHistory_NotConnected(t *testing.T) {
	c := newWithWriter(&recordingWriter{}, config.InfluxDBConfig{})

	_, err := c.TelemetryHistory(context.Background(), "SENSOR-AB12", time.Hour, 10)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestHistoryQuery(t *testing.T) {
	q := historyQuery("telemetry", `SENSOR-"X"`, 30*time.Minute, 25)

	for _, want := range []string{
		`from(bucket: "telemetry")`,
		`range(start: -1800s)`,
		`r._measurement == "telemetry"`,
		`r.device_id == "SENSOR-\"X\""`,
		`limit(n: 25)`,
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}

	defaults := historyQuery("b", "SENSOR-0001", 0, 0)
	if !strings.Contains(defaults, "range(start: -3600s)") || !strings.Contains(defaults, "limit(n: 500)") {
		t.Errorf("defaults not applied:\n%s", defaults)
	}
}
