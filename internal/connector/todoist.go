package connector

import (
	"context"
	"fmt"
	"net/http"
)

const todoistBaseURL = "https://api.todoist.com/api/v1"

// Todoist is a task tracker client over the Todoist REST API.
type Todoist struct {
	token   string
	baseURL string
	http    *httpClient
}

// NewTodoist creates a Todoist client with the given API token.
func NewTodoist(token string) *Todoist {
	return &Todoist{token: token, baseURL: todoistBaseURL, http: newHTTPClient()}
}

// NewTodoistWithBaseURL creates a client pointed at a non-default API
// endpoint. Used by tests to target an httptest server.
func NewTodoistWithBaseURL(token, baseURL string) *Todoist {
	return &Todoist{token: token, baseURL: baseURL, http: newHTTPClient()}
}

func (t *Todoist) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + t.token}
}

// CreateTask creates one task. The caller has already routed the due
// value into DueDate or DueDatetime.
func (t *Todoist) CreateTask(ctx context.Context, input CreateTaskInput) (Task, error) {
	var task Task
	url := t.baseURL + "/tasks"
	if err := t.http.doJSON(ctx, http.MethodPost, url, t.headers(), input, &task); err != nil {
		return Task{}, fmt.Errorf("todoist create task: %w", err)
	}
	if task.ID == "" {
		return Task{}, fmt.Errorf("todoist create task: response missing task id")
	}
	return task, nil
}

// CloseTask marks one task complete.
func (t *Todoist) CloseTask(ctx context.Context, taskID string) error {
	url := fmt.Sprintf("%s/tasks/%s/close", t.baseURL, taskID)
	if err := t.http.doJSON(ctx, http.MethodPost, url, t.headers(), nil, nil); err != nil {
		return fmt.Errorf("todoist close task %s: %w", taskID, err)
	}
	return nil
}
