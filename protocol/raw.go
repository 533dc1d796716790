// Package protocol decodes the NDJSON event stream written by the agent
// bridge process. Events are kept loosely typed here; package event turns
// them into the canonical tagged union.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawEvent is a single bridge event object as decoded from one NDJSON line.
// Numbers are preserved as json.Number so integer fields do not lose
// precision on their way through float64.
type RawEvent map[string]interface{}

// ParseRawEvent decodes one NDJSON line. The line must be a JSON object.
func ParseRawEvent(line []byte) (RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var ev RawEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, fmt.Errorf("decode raw event: %w", err)
	}
	if ev == nil {
		return nil, fmt.Errorf("decode raw event: not an object")
	}
	return ev, nil
}

// Type returns the "type" discriminator, or "" when absent or not a string.
func (r RawEvent) Type() string {
	s, _ := r.String("type")
	return s
}

// Alias returns the camelCase spelling of a snake_case field name
// ("tool_use_id" -> "toolUseId"). Names without underscores are returned
// unchanged.
func Alias(snake string) string {
	if !strings.Contains(snake, "_") {
		return snake
	}
	parts := strings.Split(snake, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// lookup returns the first value stored under the snake_case name or its
// camelCase alias that conv accepts. A key holding JSON null counts as
// absent, and so does a value of the wrong shape, so a usable alias still
// wins over a malformed snake_case field.
func lookup[T any](r RawEvent, name string, conv func(interface{}) (T, bool)) (T, bool) {
	keys := []string{name}
	if alias := Alias(name); alias != name {
		keys = append(keys, alias)
	}
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		if out, ok := conv(v); ok {
			return out, true
		}
	}
	var zero T
	return zero, false
}

// Value returns the field under name or its alias.
func (r RawEvent) Value(name string) (interface{}, bool) {
	return lookup(r, name, func(v interface{}) (interface{}, bool) { return v, true })
}

// String returns a string field. Non-string values are reported as absent.
func (r RawEvent) String(name string) (string, bool) {
	return lookup(r, name, func(v interface{}) (string, bool) {
		s, ok := v.(string)
		return s, ok
	})
}

// Int returns an integer field. JSON numbers, numeric strings and floats
// with an integral value are accepted.
func (r RawEvent) Int(name string) (int64, bool) {
	return lookup(r, name, toInt)
}

func toInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// Float returns a floating point field.
func (r RawEvent) Float(name string) (float64, bool) {
	return lookup(r, name, toFloat)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Bool returns a boolean field. Only real JSON booleans are accepted.
func (r RawEvent) Bool(name string) (bool, bool) {
	return lookup(r, name, func(v interface{}) (bool, bool) {
		b, ok := v.(bool)
		return b, ok
	})
}
