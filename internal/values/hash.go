package values

import "github.com/k0kubun/redisd/internal/util"

// Hash maps field to value; insertion order is never observable, so
// iteration always goes through util.SortedKeys for determinism.
type Hash struct {
	Fields map[string]string
}

func NewHash() *Hash { return &Hash{Fields: make(map[string]string)} }

func (h *Hash) Kind() Kind { return KindHash }

func (h *Hash) Len() int { return len(h.Fields) }

// Set stores field=value, returning true if the field was newly created.
func (h *Hash) Set(field, value string) bool {
	_, existed := h.Fields[field]
	h.Fields[field] = value
	return !existed
}

// SetNX stores field=value only if the field is absent, returning true on success.
func (h *Hash) SetNX(field, value string) bool {
	if _, existed := h.Fields[field]; existed {
		return false
	}
	h.Fields[field] = value
	return true
}

func (h *Hash) Get(field string) (string, bool) {
	v, ok := h.Fields[field]
	return v, ok
}

// Del removes the given fields and returns how many actually existed.
func (h *Hash) Del(fields ...string) int {
	removed := 0
	for _, f := range fields {
		if _, ok := h.Fields[f]; ok {
			delete(h.Fields, f)
			removed++
		}
	}
	return removed
}

// Keys returns field names in sorted order.
func (h *Hash) Keys() []string {
	return util.SortedKeys(h.Fields)
}

// Values returns field values ordered by field name.
func (h *Hash) Values() []string {
	keys := util.SortedKeys(h.Fields)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.Fields[k])
	}
	return out
}
