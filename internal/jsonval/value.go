// Package jsonval decodes JSON documents into a closed set of value variants
// that keep object members in document order.
package jsonval

import "strings"

type Kind uint8

const (
	KindNull Kind = 1 << iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// KindSet is a bit set of kinds.
type KindSet uint8

func Kinds(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= KindSet(k)
	}
	return s
}

func (s KindSet) Has(k Kind) bool {
	return s&KindSet(k) != 0
}

func (s KindSet) String() string {
	var parts []string
	for _, k := range []Kind{KindNull, KindBool, KindNumber, KindString, KindArray, KindObject} {
		if s.Has(k) {
			parts = append(parts, k.String())
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Value is implemented only by the variants in this package.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	Null   struct{}
	Bool   bool
	Number float64
	String string
	Array  []Value
	Object []Member
)

type Member struct {
	Key   string
	Value Value
}

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (String) sealed() {}
func (Array) sealed()  {}
func (Object) sealed() {}

// Get returns the first member named key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Lookup walks nested objects along path. It reports false as soon as a
// segment is missing or an intermediate value is not an object.
func Lookup(v Value, path ...string) (Value, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(Object)
		if !ok {
			return nil, false
		}
		next, ok := obj.Get(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}
