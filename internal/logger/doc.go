// Package logger wraps zap with a process-wide sugared logger that writes
// human-readable console lines to stderr.
//
// Every stage of the release workflow receives a context and pulls its logger
// out of it (FromContext), so names and key-value pairs attached upstream with
// WithName and WithKV show up on every line written downstream.
package logger
