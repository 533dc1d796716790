package correlation

import (
	"encoding/json"
	"strings"
)

// Accumulator collects the partial JSON chunks of one streamed tool input.
// The buffer is usually incomplete JSON: TryParse failing just means more
// chunks are coming.
type Accumulator struct {
	buf strings.Builder
}

// Append adds a chunk.
func (a *Accumulator) Append(chunk string) {
	a.buf.WriteString(chunk)
}

// Reset empties the buffer.
func (a *Accumulator) Reset() {
	a.buf.Reset()
}

// String returns the accumulated text.
func (a *Accumulator) String() string {
	return a.buf.String()
}

// Len returns the accumulated length in bytes.
func (a *Accumulator) Len() int {
	return a.buf.Len()
}

// TryParse decodes the buffer into v. It reports false, leaving v
// untouched, while the buffer is not yet a complete JSON document.
func (a *Accumulator) TryParse(v interface{}) bool {
	s := a.buf.String()
	if strings.TrimSpace(s) == "" || !json.Valid([]byte(s)) {
		return false
	}
	return json.Unmarshal([]byte(s), v) == nil
}
