package protocol

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlias(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tool_use_id", "toolUseId"},
		{"session_id", "sessionId"},
		{"type", "type"},
		{"parent_tool_use_id", "parentToolUseId"},
		{"is_error", "isError"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Alias(tt.in))
		})
	}
}

func TestParseRawEvent(t *testing.T) {
	ev, err := ParseRawEvent([]byte(`{"type":"ready","sessionId":"s1","tools":12}`))
	require.NoError(t, err)
	assert.Equal(t, "ready", ev.Type())

	id, ok := ev.String("session_id")
	assert.True(t, ok)
	assert.Equal(t, "s1", id)

	n, ok := ev.Int("tools")
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)
}

func TestParseRawEvent_NotObject(t *testing.T) {
	for _, line := range []string{`[1,2]`, `null`, `"x"`, `not json`} {
		_, err := ParseRawEvent([]byte(line))
		assert.Error(t, err, line)
	}
}

func TestRawEvent_SnakeCaseWins(t *testing.T) {
	ev := RawEvent{"tool_use_id": "snake", "toolUseId": "camel"}
	s, ok := ev.String("tool_use_id")
	require.True(t, ok)
	assert.Equal(t, "snake", s)
}

func TestRawEvent_NullFallsBackToAlias(t *testing.T) {
	ev, err := ParseRawEvent([]byte(`{"tool_use_id":null,"toolUseId":"camel"}`))
	require.NoError(t, err)
	s, ok := ev.String("tool_use_id")
	require.True(t, ok)
	assert.Equal(t, "camel", s)
}

func TestRawEvent_NumericForms(t *testing.T) {
	ev, err := ParseRawEvent([]byte(`{"a":5,"b":"7","c":2.0,"d":"x","e":1.5}`))
	require.NoError(t, err)

	a, ok := ev.Int("a")
	assert.True(t, ok)
	assert.Equal(t, int64(5), a)

	b, ok := ev.Int("b")
	assert.True(t, ok)
	assert.Equal(t, int64(7), b)

	c, ok := ev.Int("c")
	assert.True(t, ok)
	assert.Equal(t, int64(2), c)

	_, ok = ev.Int("d")
	assert.False(t, ok)

	f, ok := ev.Float("e")
	assert.True(t, ok)
	assert.InDelta(t, 1.5, f, 1e-9)
}

func TestRawEvent_WrongTypeIsAbsent(t *testing.T) {
	ev := RawEvent{"message": 12, "isError": "true"}
	_, ok := ev.String("message")
	assert.False(t, ok)
	_, ok = ev.Bool("is_error")
	assert.False(t, ok)
}

func TestRawEvent_MalformedSnakeCaseFallsBackToAlias(t *testing.T) {
	ev, err := ParseRawEvent([]byte(`{"type":"tool_result","tool_use_id":5,"toolUseId":"t1","is_error":"no","isError":true}`))
	require.NoError(t, err)

	id, ok := ev.String("tool_use_id")
	assert.True(t, ok)
	assert.Equal(t, "t1", id)

	isErr, ok := ev.Bool("is_error")
	assert.True(t, ok)
	assert.True(t, isErr)

	n, ok := ev.Int("tool_use_id")
	assert.True(t, ok, "the snake_case number is still readable as an int")
	assert.Equal(t, int64(5), n)
}

func TestReader_SkipsBlankAndMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"ready"}`,
		``,
		`garbage line`,
		`   `,
		`{"type":"done"}`,
	}, "\n")
	rd := NewReader(strings.NewReader(input))

	ev, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "ready", ev.Type())

	ev, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "done", ev.Type())

	_, err = rd.Next()
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, 1, rd.Skipped())
	assert.Equal(t, 5, rd.Line())
}

func TestStream_DeliversInOrder(t *testing.T) {
	input := "{\"type\":\"a\"}\n{\"type\":\"b\"}\n{\"type\":\"c\"}\n"
	out := make(chan RawEvent, 3)
	require.NoError(t, Stream(context.Background(), strings.NewReader(input), out))
	close(out)

	var got []string
	for ev := range out {
		got = append(got, ev.Type())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan RawEvent) // unbuffered and never drained
	err := Stream(ctx, strings.NewReader("{\"type\":\"a\"}\n"), out)
	assert.ErrorIs(t, err, context.Canceled)
}
