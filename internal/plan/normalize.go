package plan

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// defaultSentinels are the legacy placeholder strings some planners emit
// for "use the environment default". They are stripped to the empty string
// here so downstream code never compares magic strings; the executor's
// resolver treats empty as "resolve from environment defaults".
var defaultSentinels = map[string]bool{
	"__DEFAULT_TEAM__":     true,
	"__DEFAULT_PROJECT__":  true,
	"__DEFAULT_ASSIGNEE__": true,
}

func stripSentinel(s string) string {
	if defaultSentinels[s] {
		return ""
	}
	return s
}

// nfc returns the NFC-normalized form of s. Note paths, titles, and tags
// are normalized before persisting so the same user input always produces
// the same external ids, regardless of how the platform composed the
// input runes.
func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(nfc(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalize applies in-place normalization to a decoded plan: NFC on
// vault-bound strings, sentinel stripping on default-resolvable ids,
// empty-slice defaults.
func normalize(p *Plan) {
	for i, action := range p.Actions {
		switch a := action.(type) {
		case NoteUpsert:
			a.NotePath = nfc(a.NotePath)
			a.Title = nfc(a.Title)
			a.Tags = nfcTags(a.Tags)
			p.Actions[i] = a
		case NoteAppendReceipt:
			a.NotePath = nfc(a.NotePath)
			p.Actions[i] = a
		case TaskCreate:
			a.ProjectID = stripSentinel(a.ProjectID)
			a.Labels = nfcTags(a.Labels)
			p.Actions[i] = a
		case TaskClose:
			p.Actions[i] = a
		case IssueCreate:
			a.TeamID = stripSentinel(a.TeamID)
			a.AssigneeID = stripSentinel(a.AssigneeID)
			a.Labels = nfcTags(a.Labels)
			p.Actions[i] = a
		case IssueUpdate:
			p.Actions[i] = a
		}
	}
}
