// Package feedimport ingests an existing public RSS/Atom feed into a
// subscriber's article set, as an alternative intake path to email.
package feedimport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"mailfeed/pkg/domain"
	"mailfeed/pkg/feed"
	"mailfeed/pkg/httpclient"
	"mailfeed/pkg/identity"
)

const (
	// maxItems bounds one import; repeated imports dedup by id anyway,
	// but a 5000-item archive feed should not flood the snapshot.
	maxItems = 50

	// excerptLimit caps the readability excerpt stored as description.
	excerptLimit = 500
)

// Importer fetches and parses external feeds and merges their items into
// a subscriber's feed.
type Importer struct {
	aggregator *feed.Aggregator
	client     *httpclient.HTTPClient
	parser     *gofeed.Parser
	now        func() time.Time
}

// NewImporter creates an importer on top of the aggregation engine.
func NewImporter(aggregator *feed.Aggregator) *Importer {
	return &Importer{
		aggregator: aggregator,
		client:     httpclient.NewClient(httpclient.BrowserClient),
		parser:     gofeed.NewParser(),
		now:        time.Now,
	}
}

// Import fetches feedURL, converts its items to articles for the given
// recipient and merges them into the recipient's feed. Items without a
// link or title are skipped; per-item excerpt failures degrade to an
// empty description.
func (i *Importer) Import(ctx context.Context, recipient, feedURL string) ([]domain.Article, error) {
	parsed, err := i.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	subscriberHash := identity.HashEmail(recipient)

	var source *string
	if parsed.Title != "" {
		title := parsed.Title
		source = &title
	}

	items := parsed.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	candidates := make([]domain.Article, 0, len(items))
	for _, item := range items {
		if item.Link == "" || item.Title == "" {
			continue
		}

		description := strings.TrimSpace(item.Description)
		if description == "" {
			description = i.fetchExcerpt(ctx, item.Link)
		}

		createdAt := i.now()
		if item.PublishedParsed != nil {
			createdAt = *item.PublishedParsed
		}

		candidates = append(candidates, domain.Article{
			ID:          domain.NewArticleID(subscriberHash),
			URL:         item.Link,
			Title:       item.Title,
			Description: description,
			CreatedAt:   createdAt,
			Source:      source,
		})
	}

	log.Printf("[import] %d items from %s for %s", len(candidates), feedURL, subscriberHash)
	return i.aggregator.Ingest(ctx, subscriberHash, candidates)
}

// fetchFeed downloads and parses the feed document.
func (i *Importer) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	resp, err := i.client.Get(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return i.parser.Parse(resp.Body)
}

// fetchExcerpt downloads the item page and extracts a short plain-text
// excerpt. Failures return "" and are logged only.
func (i *Importer) fetchExcerpt(ctx context.Context, pageURL string) string {
	resp, err := i.client.Get(ctx, pageURL)
	if err != nil {
		log.Printf("[import] excerpt fetch failed for %s: %v", pageURL, err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[import] excerpt fetch for %s returned %s", pageURL, resp.Status)
		return ""
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		log.Printf("[import] excerpt extraction failed for %s: %v", pageURL, err)
		return ""
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > excerptLimit {
		text = text[:excerptLimit]
	}
	return text
}
