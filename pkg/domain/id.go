package domain

import "github.com/google/uuid"

// NewArticleID mints an article id in the subscriber's namespace:
// "<subscriberHash>:<uuidv7>". UUIDv7 suffixes are time-ordered, so the
// lexicographic order of record keys stays roughly chronological.
func NewArticleID(subscriberHash string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return subscriberHash + ":" + id.String()
}
