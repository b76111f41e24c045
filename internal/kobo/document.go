package kobo

import (
	"time"
)

// Document is one raw submission body as delivered by KoboToolbox: an
// arbitrary key-value payload whose shape is owned by the form, not by us.
// It is decoded from and encoded to JSON only at the wire and storage
// boundaries; everything in between passes it through opaquely.
type Document map[string]any

// Kobo metadata keys embedded in every submission document.
const (
	keyUUID           = "_uuid"
	keyXFormID        = "_xform_id_string"
	keyFormID         = "formid"
	keySubmissionTime = "_submission_time"
)

// UnknownFormUID is reported when a pushed document carries no form
// identifier under any of the known keys.
const UnknownFormUID = "unknown"

// RemoteID returns the provider-assigned submission UUID, or "" if absent.
func (d Document) RemoteID() string {
	return d.stringField(keyUUID)
}

// FormUID returns the form identifier embedded in the document. Kobo uses
// different keys depending on how the push was configured, so both are
// checked before falling back to UnknownFormUID.
func (d Document) FormUID() string {
	if uid := d.stringField(keyXFormID); uid != "" {
		return uid
	}
	if uid := d.stringField(keyFormID); uid != "" {
		return uid
	}
	return UnknownFormUID
}

// SubmittedAt parses the provider-reported submission timestamp. Kobo emits
// ISO-8601 with a trailing Z for UTC, but naive timestamps appear in the
// wild too and are assumed UTC. Missing or malformed values fall back to
// the provided time.
func (d Document) SubmittedAt(fallback time.Time) time.Time {
	raw := d.stringField(keySubmissionTime)
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", raw, time.UTC); err == nil {
		return t
	}
	return fallback
}

func (d Document) stringField(key string) string {
	v, ok := d[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
