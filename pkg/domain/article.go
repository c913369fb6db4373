package domain

import "time"

// Article is a single extracted newsletter article.
//
// ID is globally unique within a subscriber's namespace and has the form
// "<subscriberHash>:<suffix>". The JSON field names are the stored wire
// format and must not change: existing records were written with them.
type Article struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	// Source is an optional provenance label (newsletter display name or
	// subject line). nil means absent, which renderers treat differently
	// from an empty string.
	Source *string `json:"source,omitempty"`
}

// SourceLabel returns the source label or "" when absent.
func (a *Article) SourceLabel() string {
	if a.Source == nil {
		return ""
	}
	return *a.Source
}
