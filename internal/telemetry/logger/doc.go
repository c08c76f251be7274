// Package logger builds the slog.Logger used by every soketi component.
//
// Output is structured JSON by default (text for local development), and
// every attribute passes through a redaction filter before it reaches the
// writer: app secrets, auth signatures and the store passphrase are
// replaced wholesale, app keys are masked down to their first and last
// characters. HTTP middleware stores a per-request id in the context via
// WithRequestID so handler logs can be correlated across a request.
package logger
