package tools

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deepresearch/internal/agent/provider"
)

// TodoTool keeps a per-run task list the model uses to decompose the
// research question. State lives for the run only; registered when the
// todo-state ablation is enabled.
type TodoTool struct {
	items map[string]map[string]interface{}
	order []string
}

func NewTodoTool() *TodoTool {
	return &TodoTool{items: make(map[string]map[string]interface{})}
}

func (t *TodoTool) Schema() provider.ToolSchema {
	return provider.ToolSchema{
		Name:        "todo",
		Description: "Manage a todo list for research task decomposition. Use this to break down complex research questions into smaller tasks, track progress, and ensure nothing is missed.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"action": map[string]interface{}{
					"type":        "string",
					"description": "Action to perform",
					"enum":        []string{"add", "complete", "update", "list", "clear"},
				},
				"item_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the todo item (for complete/update actions)",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Title of the todo item (for add action)",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Description of the todo item",
				},
				"parent_id": map[string]interface{}{
					"type":        "string",
					"description": "Parent todo ID for sub-tasks",
				},
			},
			"required": []string{"action"},
		},
	}
}

func (t *TodoTool) Capabilities() []Capability { return nil }

func (t *TodoTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	action := stringArg(args, "action")
	switch action {
	case "add":
		title := stringArg(args, "title")
		if title == "" {
			return Failure("title required for add action")
		}
		id := uuid.NewString()[:8]
		item := map[string]interface{}{
			"id":          id,
			"title":       title,
			"description": stringArg(args, "description"),
			"status":      "pending",
			"created_at":  time.Now().UTC().Format(time.RFC3339),
			"parent_id":   stringArg(args, "parent_id"),
		}
		t.items[id] = item
		t.order = append(t.order, id)
		return ToolResult{
			Success:  true,
			Output:   map[string]interface{}{"added": item},
			Metadata: map[string]interface{}{"item_id": id},
		}

	case "complete":
		item, ok := t.items[stringArg(args, "item_id")]
		if !ok {
			return Failure("item not found: %s", stringArg(args, "item_id"))
		}
		item["status"] = "completed"
		item["completed_at"] = time.Now().UTC().Format(time.RFC3339)
		return ToolResult{Success: true, Output: map[string]interface{}{"completed": item}}

	case "update":
		item, ok := t.items[stringArg(args, "item_id")]
		if !ok {
			return Failure("item not found: %s", stringArg(args, "item_id"))
		}
		if title := stringArg(args, "title"); title != "" {
			item["title"] = title
		}
		if desc := stringArg(args, "description"); desc != "" {
			item["description"] = desc
		}
		return ToolResult{Success: true, Output: map[string]interface{}{"updated": item}}

	case "list":
		return ToolResult{Success: true, Output: t.State()}

	case "clear":
		count := len(t.items)
		t.items = make(map[string]map[string]interface{})
		t.order = nil
		return ToolResult{Success: true, Output: map[string]interface{}{"cleared": count}}

	default:
		return Failure("unknown action: %s", action)
	}
}

// State snapshots the todo list for external introspection
func (t *TodoTool) State() map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(t.order))
	pending, completed := 0, 0
	for _, id := range t.order {
		item, ok := t.items[id]
		if !ok {
			continue
		}
		items = append(items, item)
		switch item["status"] {
		case "pending":
			pending++
		case "completed":
			completed++
		}
	}
	return map[string]interface{}{
		"items":           items,
		"pending_count":   pending,
		"completed_count": completed,
	}
}
