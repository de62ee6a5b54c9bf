// Package metadata provides the per-record key/value metadata type and its
// merge semantics.
package metadata

// Metadata is an arbitrary key/value document attached to a record.
//
// Values must be JSON-serializable for snapshot persistence.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata.
// A nil receiver yields nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Merge applies patch on top of m and returns the result.
//
// The merge is shallow: keys present in patch overwrite keys of the same
// name, keys absent from patch are preserved. Neither input is mutated.
func (m Metadata) Merge(patch Metadata) Metadata {
	if len(patch) == 0 {
		return m.Clone()
	}
	merged := make(Metadata, len(m)+len(patch))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
