// Package logger wraps zap for the panel binaries: a global sugared logger
// writing to standard error in console or JSON format, context helpers that
// carry a scoped logger through calls, and an adapter for gRPC's own logs.
package logger
