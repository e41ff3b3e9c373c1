package repo

import (
	"encoding/json"
	"strings"
)

// Item is a partial view of a remote content item. Only the fields the tag
// subsystem and the UI care about are decoded.
type Item struct {
	ID          string `json:"@id"`
	Type        string `json:"@type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ReviewState string `json:"review_state"`
	Modified    string `json:"modified"`

	subjects []string
}

// subjectKeys is the accepted key spellings for the tag field, first present
// wins.
var subjectKeys = []string{"Subject", "subject", "subjects"}

// UnmarshalJSON decodes the typed fields and resolves the subject field
// through the spelling precedence list. A scalar subject value is normalized
// to a single-element sequence; blank entries are dropped.
func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	var typed alias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*it = Item(typed)
	for _, key := range subjectKeys {
		value, ok := raw[key]
		if !ok {
			continue
		}
		it.subjects = decodeSubjects(value)
		break
	}
	return nil
}

// decodeSubjects accepts an array or a scalar. Array elements are filtered to
// strings, so a mixed-type array keeps its string entries rather than failing
// wholesale.
func decodeSubjects(raw json.RawMessage) []string {
	var list []any
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		list = []any{single}
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		value, ok := entry.(string)
		if !ok {
			continue
		}
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// Subjects returns the item's tag sequence in declaration order.
func (it *Item) Subjects() []string {
	return it.subjects
}

// SetSubjects overrides the decoded tag sequence (used in tests).
func (it *Item) SetSubjects(subjects []string) {
	it.subjects = subjects
}

// DisplayTitle falls back to the item identifier when no title is set.
func (it *Item) DisplayTitle() string {
	if strings.TrimSpace(it.Title) != "" {
		return it.Title
	}
	return it.ID
}

// RelPath derives the item's path relative to the base endpoint by stripping
// the base prefix and any leading separator from its absolute identifier.
func (it *Item) RelPath(base string) string {
	if it.ID == "" {
		return ""
	}
	prefix := strings.TrimRight(base, "/")
	if strings.HasPrefix(it.ID, prefix) {
		return strings.TrimLeft(strings.TrimPrefix(it.ID, prefix), "/")
	}
	return it.ID
}
