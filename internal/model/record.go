// Package model defines the data shapes shared across the cleaning pipeline.
package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// Recognized provider record fields. Additional keys are passed through
// untouched.
const (
	FieldName      = "name"
	FieldAddress   = "address"
	FieldPhone     = "phone"
	FieldEmail     = "email"
	FieldSpecialty = "specialty"
	FieldCity      = "city"
	FieldLicense   = "license"
)

// ProviderRecord is one provider's raw field→value data. No keys are
// required; a missing key reads as the empty string.
type ProviderRecord map[string]string

// Get returns the value for key, or "" when absent.
func (r ProviderRecord) Get(key string) string {
	if r == nil {
		return ""
	}
	return r[key]
}

// Clone returns a mutable working copy. The original record is never
// modified after ingestion.
func (r ProviderRecord) Clone() ProviderRecord {
	out := make(ProviderRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CanonicalKey produces a stable serialization of the record (sorted
// field order) for use as a cache key. Byte-identical records always
// canonicalize to the same key.
func (r ProviderRecord) CanonicalKey() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r[k])
	}
	return b.String()
}

// JSON renders the record as a JSON object for prompt embedding.
func (r ProviderRecord) JSON() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
