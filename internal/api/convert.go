package api

import (
	"tagsmith/internal/credstore"
	"tagsmith/internal/repo"
)

// FromItem projects a repository item into its transport shape.
func FromItem(item *repo.Item) ItemView {
	subjects := item.Subjects()
	if subjects == nil {
		subjects = []string{}
	}
	return ItemView{
		ID:          item.ID,
		Type:        item.Type,
		Title:       item.DisplayTitle(),
		Description: item.Description,
		ReviewState: item.ReviewState,
		Modified:    item.Modified,
		Subjects:    subjects,
	}
}

// FromItems projects a slice of repository items.
func FromItems(items []repo.Item) []ItemView {
	views := make([]ItemView, len(items))
	for i := range items {
		views[i] = FromItem(&items[i])
	}
	return views
}

// FromSession projects the stored session into its transport shape. A nil
// session means no credential is held.
func FromSession(base string, session *credstore.Session) SessionInfo {
	info := SessionInfo{Base: base}
	if session == nil {
		return info
	}
	info.Authenticated = session.Token != ""
	info.Mode = session.Mode
	info.Username = session.Username
	info.TokenExpiry = session.Expiry
	return info
}
