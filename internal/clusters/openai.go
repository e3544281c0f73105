package clusters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/bcnelson/seo-insights/internal/domain"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You group search queries into topical clusters for an SEO team.
Reply with a JSON object of the form {"clusters":[{"name":"...","queryIds":["..."]}]}.
Use only the ids you are given. Put each id in at most one cluster.
Every cluster needs at least two queries and a short descriptive name.`

// OpenAI asks a chat model to cluster queries and falls back to another
// suggester when the call fails or the answer is unusable.
type OpenAI struct {
	client   *openai.Client
	model    string
	fallback Suggester
	logger   *zap.Logger
}

// OpenAIConfig configures the OpenAI suggester.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewOpenAI creates an OpenAI-backed suggester.
func NewOpenAI(cfg OpenAIConfig, fallback Suggester, logger *zap.Logger) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(config),
		model:    model,
		fallback: fallback,
		logger:   logger,
	}
}

func (o *OpenAI) Name() string { return "openai" }

type promptQuery struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type completion struct {
	Clusters []struct {
		Name     string   `json:"name"`
		QueryIDs []string `json:"queryIds"`
	} `json:"clusters"`
}

func (o *OpenAI) Suggest(ctx context.Context, queries []*domain.Query) ([]domain.Cluster, error) {
	clusters, err := o.suggest(ctx, queries)
	if err == nil && len(clusters) > 0 {
		return clusters, nil
	}
	if err == nil {
		err = fmt.Errorf("no usable clusters in response")
	}
	if o.fallback == nil {
		return nil, err
	}
	o.logger.Warn("clusters: openai suggestion failed, using fallback",
		zap.String("fallback", o.fallback.Name()), zap.Error(err))
	return o.fallback.Suggest(ctx, queries)
}

func (o *OpenAI) suggest(ctx context.Context, queries []*domain.Query) ([]domain.Cluster, error) {
	if len(queries) < 2 {
		return nil, nil
	}

	input := make([]promptQuery, len(queries))
	for i, q := range queries {
		input[i] = promptQuery{ID: q.ID, Text: q.QueryText}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return parseCompletion(resp.Choices[0].Message.Content, queries)
}

// parseCompletion decodes a model answer and keeps only clusters that
// reference known ids, dropping ids already used by an earlier cluster.
func parseCompletion(content string, queries []*domain.Query) ([]domain.Cluster, error) {
	var c completion
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	known := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		known[q.ID] = struct{}{}
	}

	used := make(map[string]struct{})
	var out []domain.Cluster
	for _, raw := range c.Clusters {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		if len([]rune(name)) > domain.MaxGroupNameLength {
			name = string([]rune(name)[:domain.MaxGroupNameLength])
		}
		var ids []string
		for _, id := range raw.QueryIDs {
			if _, ok := known[id]; !ok {
				continue
			}
			if _, dup := used[id]; dup || slices.Contains(ids, id) {
				continue
			}
			ids = append(ids, id)
		}
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			used[id] = struct{}{}
		}
		out = append(out, domain.Cluster{Name: name, QueryIDs: ids})
	}
	return out, nil
}
