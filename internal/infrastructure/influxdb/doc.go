// Package influxdb records fleet time series in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Two measurements are
// written:
//
//	telemetry   tags device_id, class     one field per numeric reading
//	actuation   tags device_id, gpio      field state
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry("SENSOR-AB12", "sensor", map[string]any{"tC": 21.5}, time.Now())
//	samples, err := client.TelemetryHistory(ctx, "SENSOR-AB12", time.Hour, 100)
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch errors arrive on the SetOnError callback.
// Connection, health check and query errors are returned directly.
//
// History is optional: a core started with influxdb.enabled=false simply
// has no Client and skips recording.
package influxdb
