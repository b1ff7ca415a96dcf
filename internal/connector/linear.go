package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const linearAPIURL = "https://api.linear.app/graphql"

// Linear is an issue tracker client over the Linear GraphQL API.
type Linear struct {
	token  string
	apiURL string
	http   *httpClient
}

// NewLinear creates a Linear client with the given API token.
func NewLinear(token string) *Linear {
	return &Linear{token: token, apiURL: linearAPIURL, http: newHTTPClient()}
}

// NewLinearWithAPIURL creates a client pointed at a non-default endpoint.
// Used by tests to target an httptest server.
func NewLinearWithAPIURL(token, apiURL string) *Linear {
	return &Linear{token: token, apiURL: apiURL, http: newHTTPClient()}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (l *Linear) headers() map[string]string {
	return map[string]string{"Authorization": l.token}
}

// CreateIssue creates one issue via the issueCreate mutation.
func (l *Linear) CreateIssue(ctx context.Context, input CreateIssueInput) (Issue, error) {
	const mutation = `
		mutation IssueCreate($input: IssueCreateInput!) {
			issueCreate(input: $input) {
				success
				issue { id title url }
			}
		}`

	vars := map[string]any{"input": map[string]any{
		"teamId": input.TeamID,
		"title":  input.Title,
	}}
	in := vars["input"].(map[string]any)
	if input.Description != "" {
		in["description"] = input.Description
	}
	if input.AssigneeID != "" {
		in["assigneeId"] = input.AssigneeID
	}

	var resp struct {
		Data struct {
			IssueCreate struct {
				Success bool  `json:"success"`
				Issue   Issue `json:"issue"`
			} `json:"issueCreate"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}
	req := graphqlRequest{Query: mutation, Variables: vars}
	if err := l.http.doJSON(ctx, http.MethodPost, l.apiURL, l.headers(), req, &resp); err != nil {
		return Issue{}, fmt.Errorf("linear create issue: %w", err)
	}
	if len(resp.Errors) > 0 {
		return Issue{}, fmt.Errorf("linear create issue: %s", joinGraphQLErrors(resp.Errors))
	}
	if resp.Data.IssueCreate.Issue.ID == "" {
		return Issue{}, fmt.Errorf("linear create issue: response missing issue id")
	}
	return resp.Data.IssueCreate.Issue, nil
}

// UpdateIssue applies a partial patch via the issueUpdate mutation.
func (l *Linear) UpdateIssue(ctx context.Context, issueID string, patch IssuePatch) error {
	const mutation = `
		mutation IssueUpdate($id: String!, $input: IssueUpdateInput!) {
			issueUpdate(id: $id, input: $input) {
				success
			}
		}`

	input := map[string]any{}
	if patch.StateID != "" {
		input["stateId"] = patch.StateID
	}
	if patch.Title != "" {
		input["title"] = patch.Title
	}
	if patch.Description != "" {
		input["description"] = patch.Description
	}

	var resp struct {
		Data struct {
			IssueUpdate struct {
				Success bool `json:"success"`
			} `json:"issueUpdate"`
		} `json:"data"`
		Errors []graphqlError `json:"errors"`
	}
	req := graphqlRequest{Query: mutation, Variables: map[string]any{"id": issueID, "input": input}}
	if err := l.http.doJSON(ctx, http.MethodPost, l.apiURL, l.headers(), req, &resp); err != nil {
		return fmt.Errorf("linear update issue %s: %w", issueID, err)
	}
	if len(resp.Errors) > 0 {
		return fmt.Errorf("linear update issue %s: %s", issueID, joinGraphQLErrors(resp.Errors))
	}
	if !resp.Data.IssueUpdate.Success {
		return fmt.Errorf("linear update issue %s: mutation reported failure", issueID)
	}
	return nil
}

func joinGraphQLErrors(errs []graphqlError) string {
	msgs, _ := json.Marshal(errs)
	return string(msgs)
}
