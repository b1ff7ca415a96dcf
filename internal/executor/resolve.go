package executor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/captrail/internal/connector"
	"github.com/roach88/captrail/internal/record"
)

// dateOnly matches YYYY-MM-DD due values. The task tracker treats
// date-only and datetime dues differently (all-day vs timed scheduling),
// so the routing must be preserved exactly.
var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// routeDue assigns a due value to the date-only or datetime field.
func routeDue(due string, input *connector.CreateTaskInput) {
	if due == "" {
		return
	}
	if dateOnly.MatchString(due) {
		input.DueDate = due
	} else {
		input.DueDatetime = due
	}
}

// resolver applies environment defaults to actions that left
// default-resolvable fields unset. Empty string means "unset"; the plan
// validator has already stripped any legacy sentinel values.
type resolver struct {
	defaults record.EnvironmentDefaults
}

func (r resolver) projectID(actionProjectID string) string {
	if actionProjectID != "" {
		return actionProjectID
	}
	return r.defaults.ProjectID
}

func (r resolver) teamID(actionTeamID string) string {
	if actionTeamID != "" {
		return actionTeamID
	}
	return r.defaults.TeamID
}

func (r resolver) assigneeID(actionAssigneeID string) string {
	if actionAssigneeID != "" {
		return actionAssigneeID
	}
	return r.defaults.AssigneeID
}

// unionTags merges tag/label sets, removing duplicates and empties.
// The result is sorted so repeated executions produce identical output.
func unionTags(sets ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, set := range sets {
		for _, tag := range set {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}
