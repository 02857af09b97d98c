package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"string", String("ok"), `"ok"`},
		{"escaped string", String(`a"b<c>`), `"a\"b<c>"`},
		{"int", Int(-42), `-42`},
		{"bool", Bool(true), `true`},
		{"empty map", Map(), `{}`},
		{"empty list", List(), `[]`},
		{
			name:  "status",
			value: Map(F("status", String("ok")), F("uptime_ms", Int(1234))),
			want:  `{"status":"ok","uptime_ms":1234}`,
		},
		{
			name: "nested keeps order",
			value: Map(
				F("slider1", Map(
					F("channel_b", Map(F("raw", Int(10)), F("percentage", Int(0)))),
					F("channel_a", Map(F("raw", Int(4095)), F("percentage", Int(100)))),
				)),
				F("switch1", Map(F("raw", Int(1)), F("state", Bool(true)))),
			),
			want: `{"slider1":{"channel_b":{"raw":10,"percentage":0},"channel_a":{"raw":4095,"percentage":100}},"switch1":{"raw":1,"state":true}}`,
		},
		{
			name:  "list",
			value: List(String("/status"), Int(1), Bool(false)),
			want:  `["/status",1,false]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Marshal(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
			assert.True(t, json.Valid(got))
		})
	}
}

func TestMarshal_Invalid(t *testing.T) {
	_, err := Marshal(Value{})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = Marshal(Map(F("broken", Value{})))
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "broken")

	_, err = Marshal(List(Int(1), Value{}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMarshalJSON_Embeds(t *testing.T) {
	data, err := json.Marshal(struct {
		Body Value `json:"body"`
	}{Body: Map(F("a", Int(1)))})
	require.NoError(t, err)
	assert.Equal(t, `{"body":{"a":1}}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	values := []Value{
		Map(F("status", String("ok")), F("uptime_ms", Int(99))),
		Map(F("switch1", Int(0)), F("switch2", Bool(false)), F("flag", Bool(true)), F("one", Int(1))),
		Map(
			F("message", String("ESP Switch Server")),
			F("endpoints", List(String("/switches"), String("/status"))),
			F("channels", List(Map(F("name", String("a")), F("input", Int(0))))),
		),
		List(),
		String("ünïcødé"),
		Int(9007199254740993),
	}

	for _, v := range values {
		data, err := Marshal(v)
		require.NoError(t, err)

		got, err := Unmarshal(data)
		require.NoError(t, err)
		assert.True(t, Equal(v, got), "round trip mismatch for %s", data)
	}
}

func TestRoundTrip_BoolsStayBools(t *testing.T) {
	data, err := Marshal(Map(F("b", Bool(true)), F("i", Int(1))))
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)

	b, _ := got.Get("b")
	assert.Equal(t, BoolKind, b.Kind())
	i, _ := got.Get("i")
	assert.Equal(t, IntKind, i.Kind())
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"float", `{"a":1.5}`},
		{"null", `{"a":null}`},
		{"truncated", `{"a":1`},
		{"trailing", `{"a":1} {}`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestAccessors(t *testing.T) {
	v := Map(F("s", String("x")), F("n", Int(7)), F("b", Bool(true)), F("l", List(Int(1))))

	s, ok := v.Get("s")
	require.True(t, ok)
	str, ok := s.Str()
	assert.True(t, ok)
	assert.Equal(t, "x", str)

	n, _ := v.Get("n")
	num, ok := n.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(7), num)

	_, ok = n.Bool()
	assert.False(t, ok)

	l, _ := v.Get("l")
	assert.Len(t, l.Items(), 1)

	_, ok = v.Get("missing")
	assert.False(t, ok)
	assert.Len(t, v.Fields(), 4)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Map(F("a", Int(1))), Map(F("a", Int(1)))))
	assert.False(t, Equal(Map(F("a", Int(1))), Map(F("a", Bool(true)))))
	assert.False(t, Equal(Map(F("a", Int(1)), F("b", Int(2))), Map(F("b", Int(2)), F("a", Int(1)))))
	assert.False(t, Equal(List(Int(1)), List(Int(1), Int(2))))
	assert.False(t, Equal(String("1"), Int(1)))
}
