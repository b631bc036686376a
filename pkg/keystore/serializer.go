package keystore

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/turtacn/credkit/pkg/errors"
)

// timestampLayout is ISO-8601 with millisecond precision in UTC, e.g. 2024-03-01T12:00:00.000Z.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// record is the persisted form of a KeyEntry. Field order is the wire order.
type record struct {
	Name             string            `json:"name"`
	Value            string            `json:"value"`
	Meta             map[string]string `json:"meta,omitempty"`
	CreationDate     string            `json:"creationDate"`
	ModificationDate string            `json:"modificationDate"`
}

func marshalEntry(e *KeyEntry) ([]byte, error) {
	rec := record{
		Name:             e.Name,
		Value:            base64.StdEncoding.EncodeToString(e.Value),
		Meta:             e.Meta,
		CreationDate:     formatTimestamp(e.CreationDate),
		ModificationDate: formatTimestamp(e.ModificationDate),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.WrapError(err, errors.CodeInternal, "failed to serialize key entry")
	}
	return data, nil
}

func unmarshalEntry(data []byte) (*KeyEntry, error) {
	var rec record
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.ErrInvalidEntry("record is not a JSON object").WithCause(err)
	}
	if dec.More() {
		return nil, errors.ErrInvalidEntry("trailing data after record")
	}
	if rec.Name == "" {
		return nil, errors.ErrInvalidEntry("name is missing")
	}

	value, err := base64.StdEncoding.DecodeString(rec.Value)
	if err != nil {
		return nil, errors.ErrInvalidEntry("value is not base64").WithCause(err)
	}
	if len(value) == 0 {
		return nil, errors.ErrInvalidEntry("value is missing")
	}
	created, err := parseTimestamp(rec.CreationDate)
	if err != nil {
		return nil, errors.ErrInvalidEntry("creationDate is not a timestamp").WithCause(err)
	}
	modified, err := parseTimestamp(rec.ModificationDate)
	if err != nil {
		return nil, errors.ErrInvalidEntry("modificationDate is not a timestamp").WithCause(err)
	}

	return &KeyEntry{
		Name:             rec.Name,
		Value:            value,
		Meta:             rec.Meta,
		CreationDate:     created,
		ModificationDate: modified,
	}, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseTimestamp accepts any RFC 3339 timestamp; the layout written by formatTimestamp is one.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
