// ABOUTME: File-operation extraction from tool calls and prose mentions in turns
// ABOUTME: Feeds continuity summaries; path arguments resolve through known key aliases

package session

import (
	"regexp"
	"strings"
)

// OpKind classifies a file operation.
type OpKind string

const (
	OpRead    OpKind = "read"
	OpWrite   OpKind = "write"
	OpDelete  OpKind = "delete"
	OpMention OpKind = "mention"
)

// FileOp is one observed operation on a path.
type FileOp struct {
	Kind OpKind `json:"kind"`
	Path string `json:"path"`
	Tool string `json:"tool,omitempty"`
}

// FileOps groups deduplicated paths by operation.
type FileOps struct {
	Read      []string
	Written   []string
	Deleted   []string
	Mentioned []string
	Log       []FileOp // first occurrence of each (kind, path), in order
	TurnCount int
}

// PathKeys are the argument names tools use for a file path, in lookup order.
var PathKeys = []string{"file_path", "path", "filePath", "filename", "file", "target_file", "notebook_path"}

// PathArg returns the first non-empty string argument under a PathKeys alias.
func PathArg(args map[string]any) string {
	for _, k := range PathKeys {
		if v, ok := args[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

var readTools = map[string]bool{
	"read": true, "glob": true, "grep": true, "view": true, "cat": true,
}

// WriteTools are tool names that create or modify files.
var WriteTools = map[string]bool{
	"write": true, "edit": true, "multiedit": true, "notebookedit": true,
	"create_file": true, "apply_patch": true,
}

var deleteTools = map[string]bool{
	"delete": true, "delete_file": true, "rm": true,
}

// IsWriteTool reports whether name is a write-type tool (case-insensitive).
func IsWriteTool(name string) bool {
	return WriteTools[strings.ToLower(name)]
}

// mentionRe finds prose like "created `internal/foo.go`" or "edited main.go".
var mentionRe = regexp.MustCompile("(?i)\\b(created|wrote|added|modified|updated|edited|changed|deleted|removed|read|opened)\\s+(?:the\\s+)?(?:file\\s+)?`?([\\w./-]+\\.[a-z0-9]{1,8})`?")

// ExtractFileOps scans turns for tool calls carrying a path argument and for
// prose mentions of file operations.
func ExtractFileOps(turns []Turn) FileOps {
	ops := FileOps{TurnCount: len(turns)}
	seen := make(map[FileOp]bool)

	add := func(op FileOp) {
		key := FileOp{Kind: op.Kind, Path: op.Path}
		if seen[key] {
			return
		}
		seen[key] = true
		ops.Log = append(ops.Log, op)
		switch op.Kind {
		case OpRead:
			ops.Read = append(ops.Read, op.Path)
		case OpWrite:
			ops.Written = append(ops.Written, op.Path)
		case OpDelete:
			ops.Deleted = append(ops.Deleted, op.Path)
		case OpMention:
			ops.Mentioned = append(ops.Mentioned, op.Path)
		}
	}

	for _, turn := range turns {
		for _, call := range turn.ToolCalls {
			path := PathArg(call.Args)
			if path == "" {
				continue
			}
			name := strings.ToLower(call.Name)
			switch {
			case readTools[name]:
				add(FileOp{Kind: OpRead, Path: path, Tool: call.Name})
			case WriteTools[name]:
				add(FileOp{Kind: OpWrite, Path: path, Tool: call.Name})
			case deleteTools[name]:
				add(FileOp{Kind: OpDelete, Path: path, Tool: call.Name})
			}
		}
		for _, p := range turn.Parts {
			for _, m := range mentionRe.FindAllStringSubmatch(p.Text, -1) {
				add(FileOp{Kind: mentionKind(m[1]), Path: m[2]})
			}
		}
	}
	return ops
}

func mentionKind(verb string) OpKind {
	switch strings.ToLower(verb) {
	case "deleted", "removed":
		return OpDelete
	case "read", "opened":
		return OpMention
	default:
		return OpWrite
	}
}
