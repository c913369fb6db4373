// Package render formats an already-computed article list as RSS or JSON.
// It is pure: no storage access, no reordering beyond what it is given.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/feeds"

	"mailfeed/pkg/domain"
)

// RSS renders the article list as an RSS 2.0 document for the given
// subscriber hash.
func RSS(subscriberHash string, articles []domain.Article) (string, error) {
	rssFeed := &feeds.Feed{
		Title:       "Newsletter for " + subscriberHash,
		Link:        &feeds.Link{Href: "https://example.com"},
		Description: "Extracted newsletter articles",
	}

	for _, article := range articles {
		item := &feeds.Item{
			Id:          article.ID,
			Title:       article.Title,
			Link:        &feeds.Link{Href: article.URL},
			Description: article.Description,
			Created:     article.CreatedAt,
		}
		if article.Source != nil {
			item.Author = &feeds.Author{Name: *article.Source}
		}
		rssFeed.Items = append(rssFeed.Items, item)
	}

	out, err := rssFeed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return out, nil
}

// JSON renders the article list as a JSON array using the stored wire
// format. A nil list renders as [] rather than null.
func JSON(articles []domain.Article) ([]byte, error) {
	if articles == nil {
		articles = []domain.Article{}
	}
	out, err := json.Marshal(articles)
	if err != nil {
		return nil, fmt.Errorf("render json: %w", err)
	}
	return out, nil
}
