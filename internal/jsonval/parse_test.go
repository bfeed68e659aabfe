package jsonval

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePreservesMemberOrder(t *testing.T) {
	v, err := ParseBytes([]byte(`{"zeta":1,"alpha":true,"mid":"x","arr":[1,2],"obj":{"k":null}}`))
	require.NoError(t, err)

	obj, ok := v.(Object)
	require.True(t, ok)
	keys := make([]string, 0, len(obj))
	for _, m := range obj {
		keys = append(keys, m.Key)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid", "arr", "obj"}, keys)

	assert.Equal(t, Number(1), obj[0].Value)
	assert.Equal(t, Bool(true), obj[1].Value)
	assert.Equal(t, String("x"), obj[2].Value)
	assert.Equal(t, Array{Number(1), Number(2)}, obj[3].Value)
	assert.Equal(t, Object{{Key: "k", Value: Null{}}}, obj[4].Value)
}

func TestParseKinds(t *testing.T) {
	tests := map[string]Kind{
		`null`:     KindNull,
		`false`:    KindBool,
		`-12.5e2`:  KindNumber,
		`"on"`:     KindString,
		`[]`:       KindArray,
		`{}`:       KindObject,
		` {"a":1}`: KindObject,
	}
	for in, want := range tests {
		v, err := ParseBytes([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v.Kind(), in)
	}
}

func TestParseMalformed(t *testing.T) {
	for _, in := range []string{
		``,
		`{`,
		`{"a":}`,
		`{"a":1,}`,
		`[1,2`,
		`{} {}`,
		`<html>not json</html>`,
	} {
		_, err := ParseBytes([]byte(in))
		assert.Error(t, err, "input %q", in)
	}
}

func TestParseNumberOverflowSaturates(t *testing.T) {
	v, err := ParseBytes([]byte(`{"power":1,"total":1e400,"returned":-1e400,"tiny":1e-400}`))
	require.NoError(t, err)

	obj := v.(Object)
	require.Len(t, obj, 4)
	assert.Equal(t, Number(1), obj[0].Value)
	assert.True(t, math.IsInf(float64(obj[1].Value.(Number)), 1))
	assert.True(t, math.IsInf(float64(obj[2].Value.(Number)), -1))
	assert.Equal(t, Number(0), obj[3].Value)
}

func TestParseTooDeep(t *testing.T) {
	in := strings.Repeat("[", maxDepth+1) + strings.Repeat("]", maxDepth+1)
	_, err := ParseBytes([]byte(in))
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestLookup(t *testing.T) {
	v, err := ParseBytes([]byte(`{"tmp":{"tC":21.5,"is_valid":true},"ram_free":1024}`))
	require.NoError(t, err)

	tc, ok := Lookup(v, "tmp", "tC")
	require.True(t, ok)
	assert.Equal(t, Number(21.5), tc)

	_, ok = Lookup(v, "tmp", "tF")
	assert.False(t, ok)

	_, ok = Lookup(v, "ram_free", "nested")
	assert.False(t, ok, "lookup through a scalar is absent")

	_, ok = Lookup(v, "missing")
	assert.False(t, ok)
}

func TestKindSet(t *testing.T) {
	s := Kinds(KindString, KindArray)
	assert.True(t, s.Has(KindString))
	assert.True(t, s.Has(KindArray))
	assert.False(t, s.Has(KindNumber))
	assert.Equal(t, "{string,array}", s.String())
}
