// Package sentiment classifies mention texts as positive, neutral or
// negative using the OpenAI chat API. Classification is an enrichment: any
// failure degrades to "no sentiment" and never aborts a collection cycle.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/kswift/oreotrends/internal/aggregator"
)

const systemPrompt = "You are a sentiment classifier for social-media posts about snack products. " +
	"For each item, respond with a JSON object {\"items\":[{\"id\":\"...\",\"sentiment\":\"positive|neutral|negative\"}]} " +
	"and nothing else."

// Client wraps the OpenAI chat API.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates the classifier. Extra request options (base URL
// overrides in tests) are passed through.
func NewClient(apiKey string, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT4oMini,
	}
}

type promptItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type classifiedItem struct {
	ID        string `json:"id"`
	Sentiment string `json:"sentiment"`
}

type classifyResponse struct {
	Items []classifiedItem `json:"items"`
}

// Classify labels each text by item ID. IDs missing from the model response
// are simply absent from the result.
func (c *Client) Classify(ctx context.Context, texts map[string]string) (map[string]aggregator.SentimentLabel, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	items := make([]promptItem, 0, len(texts))
	for id, text := range texts {
		items = append(items, promptItem{ID: id, Text: text})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("sentiment: marshal prompt: %w", err)
	}

	response, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Classify these items:\n" + string(payload)),
		},
		Temperature: openai.Float(0.0),
	})
	if err != nil {
		return nil, fmt.Errorf("sentiment: openai request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("sentiment: empty response from openai")
	}

	var parsed classifyResponse
	content := stripCodeFence(response.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("sentiment: parse openai response: %w", err)
	}

	labels := make(map[string]aggregator.SentimentLabel, len(parsed.Items))
	for _, item := range parsed.Items {
		switch item.Sentiment {
		case "positive":
			labels[item.ID] = aggregator.SentimentPositive
		case "negative":
			labels[item.ID] = aggregator.SentimentNegative
		case "neutral":
			labels[item.ID] = aggregator.SentimentNeutral
		}
	}
	return labels, nil
}

// stripCodeFence removes a markdown code fence if the model wrapped its JSON
// in one.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
