// Package flatten projects shallow JSON documents into scalar metric samples.
//
// Only boolean and numeric leaves become samples. Which of the remaining
// kinds are dropped silently is decided by Policy.Skip; a kind that is
// neither skipped nor scalar is reported as ErrUncoercible for that one
// member and the walk continues with the next member.
package flatten

import (
	"errors"
	"fmt"
	"iter"
	"strconv"

	"shelly-exporter/internal/jsonval"
	"shelly-exporter/internal/model"
)

var (
	ErrUncoercible  = errors.New("value kind cannot be coerced to float")
	ErrNotObject    = errors.New("document is not a json object")
	ErrMissingField = errors.New("required field missing")
)

// DefaultSkip drops every non-scalar kind.
var DefaultSkip = jsonval.Kinds(jsonval.KindString, jsonval.KindArray, jsonval.KindObject, jsonval.KindNull)

type Policy struct {
	BaseLabels model.Labels
	Skip       jsonval.KindSet
	NamePrefix string
}

// HostPolicy returns the policy used for a plain device resource.
func HostPolicy(host string) Policy {
	return Policy{BaseLabels: model.HostLabels(host), Skip: DefaultSkip}
}

func (p Policy) WithPrefix(prefix string) Policy {
	p.NamePrefix = prefix
	return p
}

func (p Policy) WithLabel(name, value string) Policy {
	p.BaseLabels = p.BaseLabels.With(name, value)
	return p
}

// Coerce maps bool to 0/1 and returns numbers unchanged.
func Coerce(v jsonval.Value) (float64, error) {
	switch t := v.(type) {
	case jsonval.Bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case jsonval.Number:
		return float64(t), nil
	case nil:
		return 0, fmt.Errorf("%w: nil value", ErrUncoercible)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUncoercible, v.Kind())
	}
}

// Object yields one sample per non-skipped member of v in document order.
// Errors are yielded in place of the offending member only.
func Object(v jsonval.Value, p Policy) iter.Seq2[model.Sample, error] {
	return func(yield func(model.Sample, error) bool) {
		obj, ok := v.(jsonval.Object)
		if !ok {
			yield(model.Sample{}, fmt.Errorf("%w: got %s", ErrNotObject, kindOf(v)))
			return
		}
		for _, m := range obj {
			if p.Skip.Has(m.Value.Kind()) {
				continue
			}
			val, err := Coerce(m.Value)
			if err != nil {
				if !yield(model.Sample{}, fmt.Errorf("member %q: %w", m.Key, err)) {
					return
				}
				continue
			}
			if !yield(model.Sample{Name: p.NamePrefix + m.Key, Value: val, Labels: p.BaseLabels}, nil) {
				return
			}
		}
	}
}

// Indexed flattens a repeated resource with both encodings per element:
// "<field>_<i>_<key>" with the base labels, and "<field>_<key>" with an
// extra index label. Elements that are not objects contribute nothing.
func Indexed(field string, elems jsonval.Array, p Policy) iter.Seq2[model.Sample, error] {
	return func(yield func(model.Sample, error) bool) {
		for i, elem := range elems {
			if elem.Kind() != jsonval.KindObject {
				continue
			}
			idx := strconv.Itoa(i)
			byName := p.WithPrefix(p.NamePrefix + field + "_" + idx + "_")
			byLabel := p.WithPrefix(p.NamePrefix + field + "_").WithLabel(model.LabelIndex, idx)

			for _, m := range elem.(jsonval.Object) {
				if p.Skip.Has(m.Value.Kind()) {
					continue
				}
				val, err := Coerce(m.Value)
				if err != nil {
					if !yield(model.Sample{}, fmt.Errorf("%s[%d] member %q: %w", field, i, m.Key, err)) {
						return
					}
					continue
				}
				if !yield(model.Sample{Name: byName.NamePrefix + m.Key, Value: val, Labels: byName.BaseLabels}, nil) {
					return
				}
				if !yield(model.Sample{Name: byLabel.NamePrefix + m.Key, Value: val, Labels: byLabel.BaseLabels}, nil) {
					return
				}
			}
		}
	}
}

// Field looks up path in doc and emits it under name. present is false when
// any segment of the path is absent; that is not an error.
func Field(doc jsonval.Value, name string, p Policy, path ...string) (s model.Sample, present bool, err error) {
	v, ok := jsonval.Lookup(doc, path...)
	if !ok {
		return model.Sample{}, false, nil
	}
	val, err := Coerce(v)
	if err != nil {
		return model.Sample{}, true, fmt.Errorf("field %q: %w", name, err)
	}
	return model.Sample{Name: p.NamePrefix + name, Value: val, Labels: p.BaseLabels}, true, nil
}

// Required is Field for a path that must exist.
func Required(doc jsonval.Value, name string, p Policy, path ...string) (model.Sample, error) {
	s, present, err := Field(doc, name, p, path...)
	if err != nil {
		return model.Sample{}, err
	}
	if !present {
		return model.Sample{}, fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	return s, nil
}

// Collect drains seq, returning samples and the per-member errors separately.
func Collect(seq iter.Seq2[model.Sample, error]) ([]model.Sample, []error) {
	var (
		samples []model.Sample
		errs    []error
	)
	for s, err := range seq {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		samples = append(samples, s)
	}
	return samples, errs
}

func kindOf(v jsonval.Value) string {
	if v == nil {
		return "nothing"
	}
	return v.Kind().String()
}
