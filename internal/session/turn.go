// ABOUTME: Conversation turns as seen by the mode controller: role, parts, tool calls
// ABOUTME: Includes trailing-window slicing and a JSONL/plain transcript reader

package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// PartKind distinguishes prose from code.
type PartKind string

const (
	PartText PartKind = "text"
	PartCode PartKind = "code"
)

// Part is one ordered content block of a turn.
type Part struct {
	Kind PartKind `json:"kind"`
	Text string   `json:"text"`
	Lang string   `json:"lang,omitempty"`
}

// ToolCall records a tool invocation made during a turn.
type ToolCall struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Failed bool           `json:"failed,omitempty"`
	Output string         `json:"output,omitempty"`
}

// Turn is one conversation turn. The controller only reads turns.
type Turn struct {
	Role      Role       `json:"role"`
	Parts     []Part     `json:"parts,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	At        time.Time  `json:"at,omitzero"`
}

// NewTextTurn builds a single-part text turn.
func NewTextTurn(role Role, text string) Turn {
	return Turn{Role: role, Parts: []Part{{Kind: PartText, Text: text}}}
}

// Text returns the turn's content with code parts fenced.
func (t Turn) Text() string {
	var b strings.Builder
	for i, p := range t.Parts {
		if i > 0 {
			b.WriteByte('\n')
		}
		if p.Kind == PartCode {
			b.WriteString("```")
			b.WriteString(p.Lang)
			b.WriteByte('\n')
			b.WriteString(p.Text)
			b.WriteString("\n```")
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// HasCodeBlock reports whether the turn carries a code part or a fenced block.
func (t Turn) HasCodeBlock() bool {
	for _, p := range t.Parts {
		if p.Kind == PartCode || strings.Contains(p.Text, "```") {
			return true
		}
	}
	return false
}

// HasToolCalls reports whether the turn invoked any tool.
func (t Turn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// Window returns the trailing n turns (all of them when n <= 0 or n >= len).
func Window(turns []Turn, n int) []Turn {
	if n <= 0 || n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

// transcriptLine accepts "content" as shorthand for a single text part.
type transcriptLine struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Parts     []Part     `json:"parts"`
	ToolCalls []ToolCall `json:"tool_calls"`
	At        time.Time  `json:"at"`
}

// ReadTranscript parses one turn per line. JSON lines use the Turn shape
// (or {"role","content"}); other lines are "role: text", defaulting to user.
// Blank lines and lines starting with '#' are skipped.
func ReadTranscript(r io.Reader) ([]Turn, error) {
	var turns []Turn
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "{") {
			var tl transcriptLine
			if err := json.Unmarshal([]byte(line), &tl); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			turn := Turn{Role: tl.Role, Parts: tl.Parts, ToolCalls: tl.ToolCalls, At: tl.At}
			if turn.Role == "" {
				turn.Role = RoleUser
			}
			if tl.Content != "" {
				turn.Parts = append([]Part{{Kind: PartText, Text: tl.Content}}, turn.Parts...)
			}
			turns = append(turns, turn)
			continue
		}
		turns = append(turns, parsePlainLine(line))
	}
	if err := scanner.Err(); err != nil {
		return turns, fmt.Errorf("reading transcript: %w", err)
	}
	return turns, nil
}

func parsePlainLine(line string) Turn {
	if prefix, rest, ok := strings.Cut(line, ":"); ok {
		switch Role(strings.ToLower(strings.TrimSpace(prefix))) {
		case RoleUser, RoleAssistant, RoleTool, RoleSystem:
			return NewTextTurn(Role(strings.ToLower(strings.TrimSpace(prefix))), strings.TrimSpace(rest))
		}
	}
	return NewTextTurn(RoleUser, line)
}
