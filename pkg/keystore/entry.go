package keystore

import "time"

// KeyEntry is a named record holding private key bytes.
type KeyEntry struct {
	Name             string
	Value            []byte
	Meta             map[string]string
	CreationDate     time.Time
	ModificationDate time.Time
}

// clone returns a deep copy so callers cannot mutate stored state through a returned entry.
func (e *KeyEntry) clone() *KeyEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Value != nil {
		out.Value = append([]byte(nil), e.Value...)
	}
	out.Meta = cloneMeta(e.Meta)
	return &out
}

// SaveParams are the inputs to Store.Save.
type SaveParams struct {
	Name  string `validate:"required"`
	Value []byte `validate:"required,min=1"`
	Meta  map[string]string
}

// UpdateParams are the inputs to Store.Update. At least one of Value and Meta must be set;
// a nil field keeps the stored value.
type UpdateParams struct {
	Name  string `validate:"required"`
	Value []byte `validate:"omitempty,min=1"`
	Meta  map[string]string
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
