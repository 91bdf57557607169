// Package values implements the five typed value variants of the keyspace:
// string, list, hash, set and sorted set, along with each variant's own
// command algorithms. A Value never changes variant in place; callers that
// need to change the variant of a key must erase then re-insert (store
// invariant 2).
package values

import "errors"

// Kind tags which variant a Value holds.
type Kind int

const (
	KindString Kind = iota
	KindList
	KindHash
	KindSet
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindHash:
		return "hash"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	default:
		return "unknown"
	}
}

// Value is the tagged union stored against a key in a Database.
type Value interface {
	Kind() Kind
}

// ErrWrongType is returned whenever a command's handler narrows a Value to
// the wrong variant, e.g. LPUSH against a key holding a Hash.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// AsString narrows v to *String, or fails with ErrWrongType.
func AsString(v Value) (*String, error) {
	s, ok := v.(*String)
	if !ok {
		return nil, ErrWrongType
	}
	return s, nil
}

// AsList narrows v to *List, or fails with ErrWrongType.
func AsList(v Value) (*List, error) {
	l, ok := v.(*List)
	if !ok {
		return nil, ErrWrongType
	}
	return l, nil
}

// AsHash narrows v to *Hash, or fails with ErrWrongType.
func AsHash(v Value) (*Hash, error) {
	h, ok := v.(*Hash)
	if !ok {
		return nil, ErrWrongType
	}
	return h, nil
}

// AsSet narrows v to *Set, or fails with ErrWrongType.
func AsSet(v Value) (*Set, error) {
	s, ok := v.(*Set)
	if !ok {
		return nil, ErrWrongType
	}
	return s, nil
}

// AsZSet narrows v to *ZSet, or fails with ErrWrongType.
func AsZSet(v Value) (*ZSet, error) {
	z, ok := v.(*ZSet)
	if !ok {
		return nil, ErrWrongType
	}
	return z, nil
}
