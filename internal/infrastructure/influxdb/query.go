package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHistoryWindow = time.Hour
	defaultHistoryLimit  = 500
)

// Sample is one stored telemetry field value.
type Sample struct {
	Time  time.Time `json:"time"`
	Field string    `json:"field"`
	Value any       `json:"value"`
}

// TelemetryHistory returns the telemetry a device reported within window,
// newest first, at most limit samples. Zero window or limit selects
// defaults.
func (c *Client) TelemetryHistory(ctx context.Context, key string, window time.Duration, limit int) ([]Sample, error) {
	if !c.IsConnected() || c.queryAPI == nil {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("influxdb: device key is required")
	}

	result, err := c.queryAPI.Query(ctx, historyQuery(c.cfg.Bucket, key, window, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: history: %w", ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // read-only result

	var samples []Sample
	for result.Next() {
		rec := result.Record()
		samples = append(samples, Sample{
			Time:  rec.Time(),
			Field: rec.Field(),
			Value: rec.Value(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: history: %w", ErrQueryFailed, err)
	}
	return samples, nil
}

// historyQuery builds the Flux query for TelemetryHistory.
func historyQuery(bucket, key string, window time.Duration, limit int) string {
	if window <= 0 {
		window = defaultHistoryWindow
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s)\n", strconv.Quote(bucket))
	fmt.Fprintf(&b, "  |> range(start: -%ds)\n", int64(window/time.Second))
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r._measurement == %s and r.device_id == %s)\n",
		strconv.Quote(MeasurementTelemetry), strconv.Quote(key))
	b.WriteString("  |> group()\n")
	b.WriteString("  |> sort(columns: [\"_time\"], desc: true)\n")
	fmt.Fprintf(&b, "  |> limit(n: %d)", limit)
	return b.String()
}
