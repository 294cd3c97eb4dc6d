package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"agenttodo/internal/queue"
)

// promptPreviewLength caps prompts in list_tasks output.
const promptPreviewLength = 100

var statusLabel = cases.Upper(language.Und)

func toolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "queue_task",
			Description: "Queue a task for later execution. This adds a task to the queue with a repository path, base branch, and prompt for the agent to execute.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"repoPath": map[string]any{
						"type":        "string",
						"description": "Absolute path to the git repository",
					},
					"baseBranch": map[string]any{
						"type":        "string",
						"description": "Base branch to create worktree from (e.g., main, master)",
					},
					"prompt": map[string]any{
						"type":        "string",
						"description": "The prompt/task for the agent to execute",
					},
				},
				"required": []string{"repoPath", "baseBranch", "prompt"},
			},
		},
		{
			Name:        "list_tasks",
			Description: "List all tasks in the queue with their current status",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "remove_task",
			Description: "Remove a task from the queue by its ID",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"taskId": map[string]any{
						"type":        "string",
						"description": "The ID of the task to remove",
					},
				},
				"required": []string{"taskId"},
			},
		},
	}
}

type queueTaskArgs struct {
	RepoPath   string `json:"repoPath"`
	BaseBranch string `json:"baseBranch"`
	Prompt     string `json:"prompt"`
}

type removeTaskArgs struct {
	TaskID string `json:"taskId"`
}

func (s *Server) queueTask(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args queueTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	if missing := missingFields(
		"repoPath", args.RepoPath,
		"baseBranch", args.BaseBranch,
		"prompt", args.Prompt,
	); len(missing) > 0 {
		return errorResult("missing required arguments: " + strings.Join(missing, ", ")), nil
	}

	task, err := s.store.Add(ctx, args.RepoPath, args.BaseBranch, args.Prompt)
	if err != nil {
		return ToolResult{}, err
	}
	text := fmt.Sprintf(
		"Task queued successfully!\n\nID: %s\nRepository: %s\nBase Branch: %s\nCreated: %s\n\nRun 'agent-todo' to process this task.",
		task.ID, task.RepoPath, task.BaseBranch, task.CreatedAt,
	)
	return textResult(text), nil
}

func (s *Server) listTasks(ctx context.Context, _ json.RawMessage) (ToolResult, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return ToolResult{}, err
	}
	if len(tasks) == 0 {
		return textResult("No tasks in queue."), nil
	}
	blocks := make([]string, 0, len(tasks))
	for _, task := range tasks {
		blocks = append(blocks, formatTask(task))
	}
	return textResult("Tasks in queue:\n\n" + strings.Join(blocks, "\n\n")), nil
}

func (s *Server) removeTask(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args removeTaskArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult(err.Error()), nil
	}
	if missing := missingFields("taskId", args.TaskID); len(missing) > 0 {
		return errorResult("missing required arguments: " + strings.Join(missing, ", ")), nil
	}
	if _, err := s.store.Remove(ctx, args.TaskID); err != nil {
		return ToolResult{}, err
	}
	return textResult(fmt.Sprintf("Task %s removed from queue.", args.TaskID)), nil
}

func formatTask(task queue.Task) string {
	return fmt.Sprintf(
		"[%s] %s\n  Repo: %s\n  Branch: %s\n  Created: %s\n  Prompt: %s",
		statusLabel.String(string(task.Status)),
		task.ID,
		task.RepoPath,
		task.BaseBranch,
		task.CreatedAt,
		PromptPreview(task.Prompt),
	)
}

// PromptPreview truncates prompt to its first 100 characters, marking the
// cut with "...".
func PromptPreview(prompt string) string {
	runes := []rune(prompt)
	if len(runes) <= promptPreviewLength {
		return prompt
	}
	return string(runes[:promptPreviewLength]) + "..."
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// missingFields takes name, value pairs and returns the names whose value is blank.
func missingFields(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}
