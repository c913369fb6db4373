package feed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"mailfeed/pkg/domain"
	"mailfeed/pkg/kv"
)

func testArticle(id, title string) domain.Article {
	return domain.Article{
		ID:          id,
		URL:         "http://example.com/" + title,
		Title:       title,
		Description: "description of " + title,
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// faultyStore wraps a real store and fails operations on selected keys.
type faultyStore struct {
	kv.Store
	failPutKeys map[string]bool
	failGetKeys map[string]bool
}

func (f *faultyStore) Put(ctx context.Context, key, value string) error {
	if f.failPutKeys[key] {
		return fmt.Errorf("injected put failure for %s", key)
	}
	return f.Store.Put(ctx, key, value)
}

func (f *faultyStore) Get(ctx context.Context, key string) (string, error) {
	if f.failGetKeys[key] {
		return "", fmt.Errorf("injected get failure for %s", key)
	}
	return f.Store.Get(ctx, key)
}

func TestDedupByIDIdempotent(t *testing.T) {
	articles := []domain.Article{
		testArticle("h:1", "a"),
		testArticle("h:2", "b"),
		testArticle("h:3", "c"),
	}

	doubled := append(append([]domain.Article{}, articles...), articles...)
	deduped := dedupByID(doubled)

	if len(deduped) != len(articles) {
		t.Fatalf("got %d articles, want %d", len(deduped), len(articles))
	}
	for i := range articles {
		if deduped[i].ID != articles[i].ID {
			t.Errorf("deduped[%d].ID = %q, want %q", i, deduped[i].ID, articles[i].ID)
		}
	}
}

func TestIngestSingleArticle(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	article := testArticle("abc123:1", "A")
	merged, err := agg.Ingest(ctx, "abc123", []domain.Article{article})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(merged) != 1 || merged[0].ID != "abc123:1" {
		t.Fatalf("merged = %v, want exactly [abc123:1]", merged)
	}

	got, err := agg.Read(ctx, "abc123")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Read returned %d articles, want 1", len(got))
	}
	if got[0].ID != article.ID || got[0].Title != article.Title || got[0].URL != article.URL {
		t.Errorf("Read returned %+v, want %+v", got[0], article)
	}
	if !got[0].CreatedAt.Equal(article.CreatedAt) {
		t.Errorf("CreatedAt not preserved: got %v, want %v", got[0].CreatedAt, article.CreatedAt)
	}
}

func TestIngestSequentialDisjointIDs(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	if _, err := agg.Ingest(ctx, "abc123", []domain.Article{testArticle("abc123:1", "first")}); err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	if _, err := agg.Ingest(ctx, "abc123", []domain.Article{testArticle("abc123:2", "second")}); err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	got, err := agg.Read(ctx, "abc123")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Read returned %d articles, want 2", len(got))
	}
	if got[0].ID != "abc123:1" || got[1].ID != "abc123:2" {
		t.Errorf("order = [%s, %s], want [abc123:1, abc123:2]", got[0].ID, got[1].ID)
	}
}

func TestIngestDuplicateIDKeepsOneCopy(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	article := testArticle("abc123:1", "A")
	for i := 0; i < 2; i++ {
		if _, err := agg.Ingest(ctx, "abc123", []domain.Article{article}); err != nil {
			t.Fatalf("Ingest %d failed: %v", i, err)
		}
	}

	got, err := agg.Read(ctx, "abc123")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Read returned %d articles, want exactly 1", len(got))
	}
}

func TestIngestEmptyBatchIsNoOp(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a"), testArticle("h:2", "b")})
	before, _ := agg.Read(ctx, "h")

	if _, err := agg.Ingest(ctx, "h", nil); err != nil {
		t.Fatalf("empty Ingest failed: %v", err)
	}

	after, err := agg.Read(ctx, "h")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(after) != len(before) {
		t.Fatalf("empty merge changed article count: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Errorf("article %d changed: %q -> %q", i, before[i].ID, after[i].ID)
		}
	}
}

func TestIngestUniquenessInvariant(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	batches := [][]domain.Article{
		{testArticle("h:1", "a"), testArticle("h:2", "b")},
		{testArticle("h:2", "b-again"), testArticle("h:3", "c")},
		{testArticle("h:1", "a-again")},
		{},
	}
	for _, batch := range batches {
		agg.Ingest(ctx, "h", batch)
	}

	got, err := agg.Read(ctx, "h")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	seen := make(map[string]bool)
	for _, article := range got {
		if seen[article.ID] {
			t.Errorf("duplicate id in feed: %s", article.ID)
		}
		seen[article.ID] = true
	}
	if len(got) != 3 {
		t.Errorf("got %d articles, want 3", len(got))
	}
}

func TestRebuildIdempotent(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a"), testArticle("h:2", "b")})

	first, err := agg.Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("first Rebuild failed: %v", err)
	}
	second, err := agg.Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("rebuild not idempotent: %d vs %d articles", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("article %d differs: %q vs %q", i, first[i].ID, second[i].ID)
		}
	}
}

func TestRebuildRecoversFromFailedSnapshotWrite(t *testing.T) {
	ctx := context.Background()
	backing := kv.NewMemory()
	store := &faultyStore{
		Store:       backing,
		failPutKeys: map[string]bool{SnapshotKey("h"): true},
	}
	agg := NewAggregator(store)

	_, err := agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a")})
	if err == nil {
		t.Fatal("expected partial-success error when snapshot write fails")
	}

	// Snapshot is missing, but the individual record was written through.
	got, err := NewAggregator(backing).Read(ctx, "h")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("snapshot unexpectedly present: %v", got)
	}

	rebuilt, err := NewAggregator(backing).Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(rebuilt) != 1 || rebuilt[0].ID != "h:1" {
		t.Fatalf("Rebuild did not recover the article: %v", rebuilt)
	}
}

func TestIngestContinuesPastArticleWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{
		Store:       kv.NewMemory(),
		failPutKeys: map[string]bool{"h:bad": true},
	}
	agg := NewAggregator(store)

	merged, err := agg.Ingest(ctx, "h", []domain.Article{
		testArticle("h:bad", "bad"),
		testArticle("h:good", "good"),
	})
	if err == nil {
		t.Fatal("expected partial-success error for failed article write")
	}

	// The merge still covers both candidates.
	if len(merged) != 2 {
		t.Fatalf("merged %d articles, want 2", len(merged))
	}

	got, readErr := agg.Read(ctx, "h")
	if readErr != nil {
		t.Fatalf("Read failed: %v", readErr)
	}
	if len(got) != 2 {
		t.Errorf("snapshot holds %d articles, want 2", len(got))
	}
}

func TestIngestTreatsSnapshotReadFailureAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{
		Store:       kv.NewMemory(),
		failGetKeys: map[string]bool{SnapshotKey("h"): true},
	}
	agg := NewAggregator(store)

	merged, err := agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a")})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(merged) != 1 {
		t.Errorf("merged %d articles, want 1", len(merged))
	}
}

func TestRebuildSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	agg := NewAggregator(store)

	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a")})
	store.Put(ctx, "h:corrupt", "{not json")

	rebuilt, err := agg.Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(rebuilt) != 1 || rebuilt[0].ID != "h:1" {
		t.Fatalf("Rebuild = %v, want the single valid article", rebuilt)
	}
}

func TestRebuildIgnoresSnapshotKey(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	agg := NewAggregator(store)

	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a")})

	rebuilt, err := agg.Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	// The "_rss" snapshot key does not carry the "h:" prefix, so rebuild
	// must see exactly one record.
	if len(rebuilt) != 1 {
		t.Fatalf("Rebuild saw %d records, want 1", len(rebuilt))
	}
}

func TestReadAbsentSnapshot(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	got, err := agg.Read(ctx, "nobody")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Read returned %d articles for unknown subscriber, want 0", len(got))
	}
}

func TestReadCorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	store.Put(ctx, SnapshotKey("h"), "not json at all")

	_, err := NewAggregator(store).Read(ctx, "h")
	if err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
	if !strings.Contains(err.Error(), "decode snapshot") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestIngestPreservesSourceOfFirstSeen(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(kv.NewMemory())

	first := testArticle("h:1", "a")
	firstSource := "Morning Letter"
	first.Source = &firstSource

	second := testArticle("h:1", "a")
	secondSource := "Evening Letter"
	second.Source = &secondSource

	agg.Ingest(ctx, "h", []domain.Article{first})
	agg.Ingest(ctx, "h", []domain.Article{second})

	got, err := agg.Read(ctx, "h")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d articles, want 1", len(got))
	}
	if got[0].SourceLabel() != firstSource {
		t.Errorf("source = %q, want first-seen %q", got[0].SourceLabel(), firstSource)
	}
}

func TestSnapshotIsSubsetOfRecords(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	agg := NewAggregator(store)

	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a"), testArticle("h:2", "b")})
	agg.Ingest(ctx, "h", []domain.Article{testArticle("h:3", "c")})

	snapshot, err := agg.Read(ctx, "h")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	keys, err := store.ListByPrefix(ctx, SubscriberPrefix("h"), 0)
	if err != nil {
		t.Fatalf("ListByPrefix failed: %v", err)
	}

	recorded := make(map[string]bool, len(keys))
	for _, key := range keys {
		recorded[key] = true
	}
	for _, article := range snapshot {
		if !recorded[article.ID] {
			t.Errorf("snapshot article %s has no individual record", article.ID)
		}
	}

	// Immediately after a rebuild the two sets are equal.
	rebuilt, err := agg.Rebuild(ctx, "h")
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if len(rebuilt) != len(keys) {
		t.Errorf("rebuilt %d articles, records %d", len(rebuilt), len(keys))
	}
}

func TestIngestReturnsJoinedErrors(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{
		Store: kv.NewMemory(),
		failPutKeys: map[string]bool{
			"h:1":            true,
			SnapshotKey("h"): true,
		},
	}
	agg := NewAggregator(store)

	_, err := agg.Ingest(ctx, "h", []domain.Article{testArticle("h:1", "a")})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "h:1") || !strings.Contains(err.Error(), "snapshot write") {
		t.Errorf("error should mention both failures, got: %v", err)
	}
}
