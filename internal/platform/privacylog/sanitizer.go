// Package privacylog wraps slog handlers so that key material and pass holder
// details never reach the logs in plain form.
//
// Attributes are classified by key. Values implementing slog.LogValuer, such
// as holder information and signing keys, are resolved first so that each of
// their fields goes through the same policy. Fields of a holder group are
// judged by their wire names.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

type policy uint8

const (
	keep policy = iota
	redact
	fingerprint
)

type scope uint8

const (
	topScope scope = iota
	holderScope
)

var (
	bootNonce = randomNonce()

	// Keys that name a pass holder. A scalar value is fingerprinted, a group
	// value is sanitized field by field under holderFields.
	holderKeys = map[string]struct{}{
		"holder":      {},
		"holder_name": {},
		"user_info":   {},
	}
	// Fingerprints are salted per process, so one holder correlates within a
	// run only.
	holderFields = map[string]policy{
		"name":                  fingerprint,
		"gender":                fingerprint,
		"country":               fingerprint,
		"birth_time":            fingerprint,
		"image_url":             fingerprint,
		"social_id":             redact,
		"regional_phone_number": redact,
	}
	sensitiveKeyParts = []string{"passphrase", "password", "mnemonic", "private", "secret", "social_id", "phone", "scalar"}
)

type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(sanitize(attr, topScope))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAll(attrs, topScope))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the logging policy to a single top-level attribute.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	return sanitize(attr, topScope)
}

func sanitize(attr slog.Attr, sc scope) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)
	value := attr.Value.Resolve()
	p := classify(lower, sc)

	if value.Kind() == slog.KindGroup {
		if p == redact {
			return slog.String(key, redactedValue)
		}
		inner := sc
		if _, ok := holderKeys[lower]; ok {
			inner = holderScope
		}
		return slog.Attr{Key: key, Value: slog.GroupValue(sanitizeAll(value.Group(), inner)...)}
	}

	switch p {
	case redact:
		return slog.String(key, redactedValue)
	case fingerprint:
		return slog.String(fingerprintKeyName(key), FingerprintID(valueToString(value)))
	default:
		return slog.Attr{Key: key, Value: value}
	}
}

func sanitizeAll(attrs []slog.Attr, sc scope) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		out = append(out, sanitize(attr, sc))
	}
	return out
}

func classify(key string, sc scope) policy {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return redact
		}
	}
	if sc == holderScope {
		return holderFields[key]
	}
	if _, ok := holderKeys[key]; ok {
		return fingerprint
	}
	return keep
}

// FingerprintID returns a per-process salted identifier for value, or "" when
// value is blank.
func FingerprintID(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(trimmed + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func fingerprintKeyName(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "_fp") {
		return key
	}
	return key + "_fp"
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return fmt.Sprintf("%d", v.Int64())
	case slog.KindUint64:
		return fmt.Sprintf("%d", v.Uint64())
	case slog.KindTime:
		return v.Time().UTC().Format("2006-01-02T15:04:05.000000000Z")
	default:
		return fmt.Sprint(v.Any())
	}
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
