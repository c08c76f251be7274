package logger

import (
	"log/slog"
	"strings"
)

const redactedValue = "***REDACTED***"

// Substrings that mark a key as carrying a secret: app secrets, the
// store passphrase, HMAC signatures and assorted credentials.
var secretKeyPatterns = []string{
	"password",
	"secret",
	"passphrase",
	"signature",
	"token",
	"credential",
	"bearer",
}

// Keys masked rather than dropped. App keys are public identifiers,
// but logs full of them are still a gift to a scraper.
var maskedKeys = map[string]bool{
	"auth_key": true,
	"app_key":  true,
}

// redactSensitive rewrites a single attribute. Installed as the
// handler's ReplaceAttr hook, so it sees every attribute logged
// anywhere in the process.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		val := a.Value.String()
		if val == "" {
			return a
		}
		key := strings.ToLower(a.Key)
		// Masking wins: auth_key would otherwise hit the "key"
		// patterns and vanish entirely.
		if maskedKeys[key] {
			return slog.String(a.Key, maskValue(val))
		}
		if isSecretKey(key) {
			return slog.String(a.Key, redactedValue)
		}

	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, nested := range attrs {
			out[i] = redactSensitive(nested)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	return a
}

func isSecretKey(lowered string) bool {
	for _, p := range secretKeyPatterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

// maskValue keeps the first and last three characters so operators can
// still correlate entries against a known key.
func maskValue(v string) string {
	if len(v) <= 6 {
		return "***"
	}
	return v[:3] + "..." + v[len(v)-3:]
}
