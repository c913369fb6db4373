// Package process orchestrates inbound email handling: parse, classify,
// and either follow a signup confirmation link or extract articles and
// merge them into the subscriber's feed.
package process

import (
	"context"
	"fmt"
	"log"

	"mailfeed/pkg/domain"
	"mailfeed/pkg/email"
	"mailfeed/pkg/feed"
	"mailfeed/pkg/htmlclean"
	"mailfeed/pkg/httpclient"
	"mailfeed/pkg/identity"
)

// Extractor is the slice of the extraction service the processing
// pipeline depends on.
type Extractor interface {
	ExtractArticles(ctx context.Context, idPrefix, html, source string) ([]domain.Article, error)
	IsSignupConfirmation(ctx context.Context, subject string) (bool, error)
	ConfirmationURL(ctx context.Context, body string) (string, error)
}

// Service wires the email pipeline together.
type Service struct {
	aggregator *feed.Aggregator
	extractor  Extractor
	client     *httpclient.HTTPClient
}

// NewService creates the processing service.
func NewService(aggregator *feed.Aggregator, extractor Extractor) *Service {
	return &Service{
		aggregator: aggregator,
		extractor:  extractor,
		client:     httpclient.NewClient(httpclient.PlainClient),
	}
}

// ProcessEmail handles one raw inbound email:
//
//	parse -> classify -> (confirmation: fetch URL and stop)
//	                   | (newsletter: extract -> ingest)
//
// Classifier and extractor failures degrade to "fewer articles", never to
// a processing error; only an unparseable message or a storage failure is
// surfaced.
func (s *Service) ProcessEmail(ctx context.Context, raw []byte) error {
	msg, err := email.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse email: %w", err)
	}
	if msg.To == "" {
		return fmt.Errorf("no recipient address in email")
	}
	log.Printf("[process] email for %s, subject %q", msg.To, msg.Subject)

	isSignup, err := s.extractor.IsSignupConfirmation(ctx, msg.Subject)
	if err != nil {
		log.Printf("[process] signup classification failed, treating as newsletter: %v", err)
		isSignup = false
	}

	if isSignup {
		s.confirmSignup(ctx, msg.Body())
		return nil
	}

	_, err = s.ProcessNewsletter(ctx, msg.To, msg.Body(), msg.SourceLabel())
	return err
}

// ProcessNewsletter extracts articles from newsletter HTML and merges
// them into the recipient's feed, returning the merged list.
func (s *Service) ProcessNewsletter(ctx context.Context, recipient, html, source string) ([]domain.Article, error) {
	subscriberHash := identity.HashEmail(recipient)
	sanitized := htmlclean.Sanitize(html)

	candidates, err := s.extractor.ExtractArticles(ctx, subscriberHash, sanitized, source)
	if err != nil {
		// Zero candidates; the merge below is then a no-op that keeps
		// the existing feed intact.
		log.Printf("[process] extraction failed for %s: %v", subscriberHash, err)
		candidates = nil
	}
	log.Printf("[process] extracted %d articles for %s", len(candidates), subscriberHash)

	return s.aggregator.Ingest(ctx, subscriberHash, candidates)
}

// confirmSignup extracts the confirmation URL from the email body and
// issues a one-shot GET against it. No state is kept either way.
func (s *Service) confirmSignup(ctx context.Context, body string) {
	url, err := s.extractor.ConfirmationURL(ctx, body)
	if err != nil {
		log.Printf("[process] confirmation url extraction failed: %v", err)
		return
	}
	if url == "" {
		log.Printf("[process] no confirmation url found")
		return
	}

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		log.Printf("[process] confirmation fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Printf("[process] signup confirmed via %s", url)
	} else {
		log.Printf("[process] confirmation fetch returned %s", resp.Status)
	}
}
