package model

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// SummaryTools names the configurable tools that ToolSummary describes by
// their input.
type SummaryTools struct {
	Read string
	Task string
}

// DefaultSummaryTools returns the agent CLI's tool names.
func DefaultSummaryTools() SummaryTools {
	return SummaryTools{Read: "Read", Task: "Task"}
}

// ToolSummary returns a one-line description of a tool call using the
// default tool names.
func ToolSummary(t *ToolUse) string {
	return DefaultSummaryTools().Summary(t)
}

// Summary returns a one-line description of a tool call for status lines
// and logs.
func (n SummaryTools) Summary(t *ToolUse) string {
	if t == nil {
		return ""
	}
	input := t.Input
	str := func(key string) (string, bool) {
		s, ok := input[key].(string)
		return s, ok && s != ""
	}
	switch t.Name {
	case n.Read:
		if p, ok := str("file_path"); ok {
			return fmt.Sprintf("%s %s", t.Name, truncatePath(p))
		}
	case n.Task:
		if t.Subagent != nil && t.Subagent.Description != "" {
			return fmt.Sprintf("%s: %s", t.Name, Truncate(t.Subagent.Description, 40))
		}
		if d, ok := str("description"); ok {
			return fmt.Sprintf("%s: %s", t.Name, Truncate(d, 40))
		}
	case "Write", "Edit":
		if p, ok := str("file_path"); ok {
			return fmt.Sprintf("%s → %s", t.Name, truncatePath(p))
		}
	case "Bash":
		if cmd, ok := str("command"); ok {
			return fmt.Sprintf("%s: %s", t.Name, Truncate(firstLine(cmd), 50))
		}
	case "Glob", "Grep":
		if pat, ok := str("pattern"); ok {
			return fmt.Sprintf("%s %s", t.Name, Truncate(pat, 40))
		}
	}
	return t.Name
}

// Truncate shortens s to at most width display cells, appending "..." when
// anything was cut. Wide runes count as two cells.
func Truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// truncatePath keeps the file name visible when shortening long paths.
func truncatePath(p string) string {
	if runewidth.StringWidth(p) <= 60 {
		return p
	}
	if i := strings.LastIndex(p, "/"); i > 0 && runewidth.StringWidth(p[i:]) <= 50 {
		return "..." + p[i:]
	}
	return Truncate(p, 60)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
