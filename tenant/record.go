// Package tenant implements the multi-tenant keyed-record store: composite
// key construction, transparent workspace scoping of every read and write,
// and the ordered change feed that downstream reactors consume.
package tenant

// Record is a keyed record as seen by callers: unscoped keys plus a flat
// attribute map. The store owns the persisted (workspace-prefixed) form;
// callers never see raw storage keys.
type Record struct {
	PK     Key
	SK     Key
	Fields map[string]string
}

// Field returns the named attribute ("" when absent).
func (r Record) Field(name string) string {
	return r.Fields[name]
}

// cloneFields copies an attribute map so stored state never aliases
// caller-owned maps.
func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
