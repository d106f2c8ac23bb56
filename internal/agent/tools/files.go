package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// File tools operate inside a per-run working directory. Filenames are
// flattened to their base name so the model cannot escape the workdir.

// FileWriteTool writes or appends content to a workdir file
type FileWriteTool struct {
	workdir string
}

func NewFileWriteTool(workdir string) *FileWriteTool {
	_ = os.MkdirAll(workdir, 0o755)
	return &FileWriteTool{workdir: workdir}
}

func (t *FileWriteTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "file_write",
		Description: "Write content to a file. Used for creating report drafts, saving evidence, etc.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Name of the file to write",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Content to write to the file",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Write mode: 'write' (overwrite) or 'append'",
					"enum":        []string{"write", "append"},
					"default":     "write",
				},
			},
			"required": []string{"filename", "content"},
		},
	}
}

func (t *FileWriteTool) Capabilities() []Capability { return nil }

func (t *FileWriteTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	filename := stringArg(args, "filename")
	if filename == "" {
		return Failure("filename is required")
	}
	content, ok := args["content"].(string)
	if !ok {
		return Failure("content is required")
	}
	mode := stringArg(args, "mode")

	path := filepath.Join(t.workdir, filepath.Base(filename))
	flags := os.O_CREATE | os.O_WRONLY
	if mode == "append" {
		flags |= os.O_APPEND
	} else {
		mode = "write"
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return Failure("file write failed: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return Failure("file write failed: %v", err)
	}

	return ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"filepath":      path,
			"bytes_written": len(content),
			"mode":          mode,
		},
		Metadata: map[string]interface{}{"filepath": path},
	}
}

// FileReadTool reads a workdir file, optionally by line range
type FileReadTool struct {
	workdir string
}

func NewFileReadTool(workdir string) *FileReadTool {
	return &FileReadTool{workdir: workdir}
}

func (t *FileReadTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "file_read",
		Description: "Read content from a file. Used for reading previously saved content, evidence, etc.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Name of the file to read",
				},
				"start_line": map[string]interface{}{
					"type":        "integer",
					"description": "Starting line number (1-indexed)",
				},
				"end_line": map[string]interface{}{
					"type":        "integer",
					"description": "Ending line number (1-indexed)",
				},
			},
			"required": []string{"filename"},
		},
	}
}

func (t *FileReadTool) Capabilities() []Capability { return nil }

func (t *FileReadTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	filename := stringArg(args, "filename")
	if filename == "" {
		return Failure("filename is required")
	}
	path := filepath.Join(t.workdir, filepath.Base(filename))

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failure("file not found: %s", filename)
		}
		return Failure("file read failed: %v", err)
	}

	content := string(raw)
	lines := strings.Split(content, "\n")
	startLine := intArg(args, "start_line", 0)
	endLine := intArg(args, "end_line", 0)
	if startLine > 0 || endLine > 0 {
		start := startLine
		if start < 1 {
			start = 1
		}
		end := endLine
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > end {
			return Failure("invalid line range %d-%d", startLine, endLine)
		}
		lines = lines[start-1 : end]
		content = strings.Join(lines, "\n")
	}

	return ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"filepath":   path,
			"content":    content,
			"line_count": len(lines),
		},
	}
}

// FileEditTool applies a single find-and-replace patch to a workdir file.
// Registered only when patch editing is enabled.
type FileEditTool struct {
	workdir string
}

func NewFileEditTool(workdir string) *FileEditTool {
	return &FileEditTool{workdir: workdir}
}

func (t *FileEditTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "file_edit",
		Description: "Edit a file using patch-based modifications. More efficient than full rewrites for incremental changes. Specify the old text to replace and the new text.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"filename": map[string]interface{}{
					"type":        "string",
					"description": "Name of the file to edit",
				},
				"old_text": map[string]interface{}{
					"type":        "string",
					"description": "Text to find and replace",
				},
				"new_text": map[string]interface{}{
					"type":        "string",
					"description": "Replacement text",
				},
			},
			"required": []string{"filename", "old_text", "new_text"},
		},
	}
}

func (t *FileEditTool) Capabilities() []Capability { return nil }

func (t *FileEditTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	filename := stringArg(args, "filename")
	if filename == "" {
		return Failure("filename is required")
	}
	oldText, okOld := args["old_text"].(string)
	newText, okNew := args["new_text"].(string)
	if !okOld || !okNew || oldText == "" {
		return Failure("old_text and new_text are required")
	}

	path := filepath.Join(t.workdir, filepath.Base(filename))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Failure("file not found: %s", filename)
		}
		return Failure("file edit failed: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, oldText) {
		return Failure("old text not found in file")
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return Failure("file edit failed: %v", err)
	}

	return ToolResult{
		Success: true,
		Output: map[string]interface{}{
			"filepath":   path,
			"old_length": len(oldText),
			"new_length": len(newText),
		},
		Metadata: map[string]interface{}{"filepath": path},
	}
}
