// Package feed implements the aggregation engine: it merges freshly
// extracted articles into a subscriber's durable article set and keeps
// the per-subscriber feed snapshot consistent with the individually
// stored article records.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"mailfeed/pkg/domain"
	"mailfeed/pkg/kv"
)

// rebuildPageLimit bounds the enumeration during Rebuild. Records beyond
// the limit stay durable but are not folded into the snapshot until a
// paginating caller comes along.
const rebuildPageLimit = 100

// Aggregator reconciles extracted articles against a subscriber's stored
// article history.
//
// The store offers no cross-key transactions, so concurrent Ingest calls
// for the same subscriber can race on the snapshot read-modify-write and
// the later write wins. That is an accepted trade-off: individual article
// records are write-once and never overwritten, so Rebuild can always
// recover a dropped merge. Callers that need strict serialization must
// single-flight Ingest per subscriber hash themselves.
type Aggregator struct {
	store kv.Store
}

// NewAggregator creates an aggregator on top of the given store.
func NewAggregator(store kv.Store) *Aggregator {
	return &Aggregator{store: store}
}

// Ingest merges candidate articles into the subscriber's feed.
//
// Each candidate is first persisted under its own id key (write-through),
// so the raw extracted data survives even if the snapshot merge fails
// afterwards. The merged, deduplicated list is then written back to the
// snapshot key and returned.
//
// A write failure does not abort the operation: the merge proceeds with
// whatever succeeded and the accumulated errors are returned alongside
// the merged list as a partial-success condition.
func (a *Aggregator) Ingest(ctx context.Context, subscriberHash string, candidates []domain.Article) ([]domain.Article, error) {
	var writeErrs []error

	for _, article := range candidates {
		if err := a.putArticle(ctx, article); err != nil {
			log.Printf("[feed] article write failed for %s: %v", article.ID, err)
			writeErrs = append(writeErrs, err)
		}
	}

	existing, err := a.Read(ctx, subscriberHash)
	if err != nil {
		// An absent or unreadable snapshot is not fatal: merge against
		// empty and let the write below replace it.
		log.Printf("[feed] snapshot read failed for %s, merging against empty: %v", subscriberHash, err)
		existing = nil
	}

	merged := dedupByID(append(existing, candidates...))

	if err := a.putSnapshot(ctx, subscriberHash, merged); err != nil {
		writeErrs = append(writeErrs, fmt.Errorf("snapshot write: %w", err))
	}

	return merged, errors.Join(writeErrs...)
}

// Rebuild recomputes the snapshot from scratch by enumerating the
// subscriber's individual article records and overwriting the snapshot
// with the result. It is the authoritative repair path when the snapshot
// has diverged from the records, e.g. after a partial Ingest failure or
// a lost concurrent merge.
func (a *Aggregator) Rebuild(ctx context.Context, subscriberHash string) ([]domain.Article, error) {
	keys, err := a.store.ListByPrefix(ctx, SubscriberPrefix(subscriberHash), rebuildPageLimit)
	if err != nil {
		return nil, fmt.Errorf("enumerate article records: %w", err)
	}

	articles := make([]domain.Article, 0, len(keys))
	for _, key := range keys {
		raw, err := a.store.Get(ctx, key)
		if err != nil {
			log.Printf("[feed] skipping unreadable record %s: %v", key, err)
			continue
		}
		var article domain.Article
		if err := json.Unmarshal([]byte(raw), &article); err != nil {
			log.Printf("[feed] skipping malformed record %s: %v", key, err)
			continue
		}
		articles = append(articles, article)
	}

	rebuilt := dedupByID(articles)

	if err := a.putSnapshot(ctx, subscriberHash, rebuilt); err != nil {
		return rebuilt, fmt.Errorf("snapshot write: %w", err)
	}
	return rebuilt, nil
}

// Read returns the stored feed snapshot verbatim, or an empty list when
// no snapshot exists. This is the fast path used by feed rendering; it
// accepts the small staleness window between a concurrent Ingest
// completing and this read.
func (a *Aggregator) Read(ctx context.Context, subscriberHash string) ([]domain.Article, error) {
	raw, err := a.store.Get(ctx, SnapshotKey(subscriberHash))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot read: %w", err)
	}

	var articles []domain.Article
	if err := json.Unmarshal([]byte(raw), &articles); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return articles, nil
}

func (a *Aggregator) putArticle(ctx context.Context, article domain.Article) error {
	raw, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("encode article %s: %w", article.ID, err)
	}
	return a.store.Put(ctx, ArticleKey(article), string(raw))
}

func (a *Aggregator) putSnapshot(ctx context.Context, subscriberHash string, articles []domain.Article) error {
	raw, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return a.store.Put(ctx, SnapshotKey(subscriberHash), string(raw))
}

// dedupByID removes articles whose id was already seen, preserving
// first-seen order. Existing articles therefore keep their position over
// later candidates with the same id; the source label of a dropped
// duplicate is discarded with it.
func dedupByID(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	deduped := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := seen[article.ID]; ok {
			continue
		}
		seen[article.ID] = struct{}{}
		deduped = append(deduped, article)
	}
	return deduped
}
