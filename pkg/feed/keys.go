package feed

import "mailfeed/pkg/domain"

// Storage key scheme. The formats are load-bearing: existing stores hold
// data written under these exact keys.
//
//	individual article record: "<subscriberHash>:<suffix>" (the article id)
//	feed snapshot:             "<subscriberHash>_rss"
//	rebuild enumeration:       "<subscriberHash>:"

// ArticleKey returns the storage key for an individual article record.
func ArticleKey(article domain.Article) string {
	return article.ID
}

// SnapshotKey returns the feed snapshot key for a subscriber hash.
func SnapshotKey(subscriberHash string) string {
	return subscriberHash + "_rss"
}

// SubscriberPrefix returns the key prefix shared by a subscriber's
// individual article records. The "_rss" snapshot key does not match it.
func SubscriberPrefix(subscriberHash string) string {
	return subscriberHash + ":"
}
