// Package logging provides structured logging for Fleet Core.
//
// It wraps the standard log/slog package so every component emits the same
// shape of record: JSON in production, text during development, with the
// service name and build version attached to every entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	routerLog := logger.Component("router")
//	routerLog.Warn("dropping message", "topic", topic)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
