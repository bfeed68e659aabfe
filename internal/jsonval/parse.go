package jsonval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

const maxDepth = 64

var ErrTooDeep = errors.New("json nesting too deep")

// Parse decodes exactly one JSON value from r. Trailing data is an error.
func Parse(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	v, err := decodeValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, fmt.Errorf("unexpected trailing data after json value")
		}
		return nil, fmt.Errorf("read trailing data: %w", err)
	}
	return v, nil
}

func ParseBytes(b []byte) (Value, error) {
	return Parse(bytes.NewReader(b))
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return fromToken(dec, tok, depth)
}

func fromToken(dec *json.Decoder, tok json.Token, depth int) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		// Overflow saturates to +/-Inf instead of failing the document.
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("parse number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case json.Delim:
		if depth >= maxDepth {
			return nil, ErrTooDeep
		}
		switch t {
		case '{':
			return decodeObject(dec, depth+1)
		case '[':
			return decodeArray(dec, depth+1)
		}
	}
	return nil, fmt.Errorf("unexpected json token %v", tok)
}

func decodeObject(dec *json.Decoder, depth int) (Object, error) {
	obj := Object{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, want string", keyTok)
		}
		v, err := decodeValue(dec, depth)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		obj = append(obj, Member{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder, depth int) (Array, error) {
	arr := Array{}
	for dec.More() {
		v, err := decodeValue(dec, depth)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", len(arr), err)
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
