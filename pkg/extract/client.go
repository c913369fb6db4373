// Package extract calls the external language-model service that turns
// newsletter HTML into structured article candidates, and classifies
// signup-confirmation emails.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mailfeed/pkg/domain"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultBaseURL = "https://api.openai.com"
)

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model to use.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithClock sets the time source used for article timestamps (for testing).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new extraction client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// candidateArticle is the validated shape of one extracted entry.
type candidateArticle struct {
	Link        string `json:"link"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type articlesPayload struct {
	Articles []candidateArticle `json:"articles"`
}

type signupPayload struct {
	Signup bool `json:"signup"`
}

type confirmationPayload struct {
	URL string `json:"url"`
}

// ExtractArticles asks the model for all articles in the newsletter HTML
// and returns them as domain Articles namespaced under idPrefix. Entries
// missing a link or title are dropped rather than propagated.
func (c *Client) ExtractArticles(ctx context.Context, idPrefix, html, source string) ([]domain.Article, error) {
	prompt := "Extract all articles with links, headlines and short descriptions from this email newsletter. " +
		"Ignore links like legal that are not part of the main content. " +
		"Provide the result strictly as JSON in the form " +
		`{"articles":[{"link":"...","title":"...","description":"..."}]}.` +
		"\n\n" + html

	var payload articlesPayload
	if err := c.completeJSON(ctx, prompt, &payload); err != nil {
		return nil, fmt.Errorf("extract articles: %w", err)
	}

	createdAt := c.now()
	articles := make([]domain.Article, 0, len(payload.Articles))
	for _, candidate := range payload.Articles {
		if candidate.Link == "" || candidate.Title == "" {
			continue
		}
		article := domain.Article{
			ID:          domain.NewArticleID(idPrefix),
			URL:         candidate.Link,
			Title:       candidate.Title,
			Description: candidate.Description,
			CreatedAt:   createdAt,
		}
		if source != "" {
			label := source
			article.Source = &label
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// IsSignupConfirmation classifies an email subject as a subscription
// confirmation message.
func (c *Client) IsSignupConfirmation(ctx context.Context, subject string) (bool, error) {
	prompt := "Determine if the email is a signup confirmation based on the subject. " +
		`Return your answer strictly as JSON, either {"signup":true} or {"signup":false}.` +
		"\n\n" + subject

	var payload signupPayload
	if err := c.completeJSON(ctx, prompt, &payload); err != nil {
		return false, fmt.Errorf("classify signup: %w", err)
	}
	return payload.Signup, nil
}

// ConfirmationURL extracts the subscription confirmation link from the
// email body.
func (c *Client) ConfirmationURL(ctx context.Context, body string) (string, error) {
	prompt := "Extract the subscription confirmation link from this email message. " +
		`Return strictly JSON of the form {"url":"..."}.` +
		"\n\n" + body

	var payload confirmationPayload
	if err := c.completeJSON(ctx, prompt, &payload); err != nil {
		return "", fmt.Errorf("extract confirmation url: %w", err)
	}
	return payload.URL, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// completeJSON sends the prompt and unmarshals the model's JSON reply
// into out.
func (c *Client) completeJSON(ctx context.Context, prompt string, out any) error {
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &chatFormat{Type: "json_object"},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return fmt.Errorf("no choices in response")
	}

	content := stripMarkdownCodeBlock(chatResp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("parse model output: %w", err)
	}
	return nil
}

// stripMarkdownCodeBlock removes a ```json ... ``` wrapper that some
// models add despite the JSON response format.
func stripMarkdownCodeBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
