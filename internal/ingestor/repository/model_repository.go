package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"market-pulse/internal/ingestor/config"
	"market-pulse/internal/ingestor/dto"
	"market-pulse/pkg/logger"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Floor applied when max_request_per_minute is unset, so the limiter never
// divides by zero.
const defaultMaxRequestPerMinute = 10

// ModelRepository is the boundary to the external sentiment/embedding model.
// Both outputs are validated against their contracts before being returned.
type ModelRepository interface {
	ScoreSentiment(ctx context.Context, text string) (*dto.Sentiment, error)
	Embed(ctx context.Context, text string) (*dto.EmbeddingVector, error)
}

// geminiModelRepository implements ModelRepository against the Gemini API.
type geminiModelRepository struct {
	cfg            *config.Config
	logger         *logger.Logger
	genAiClient    *genai.Client
	requestLimiter *rate.Limiter
}

// NewGeminiModelRepository creates a Gemini-backed model repository with
// request-level rate limiting.
func NewGeminiModelRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) ModelRepository {
	maxPerMinute := cfg.Model.MaxRequestPerMinute
	if maxPerMinute <= 0 {
		maxPerMinute = defaultMaxRequestPerMinute
	}
	secondsPerRequest := time.Minute / time.Duration(maxPerMinute)
	return &geminiModelRepository{
		cfg:            cfg,
		logger:         log,
		genAiClient:    genAiClient,
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

func buildSentimentPrompt(text string) string {
	return fmt.Sprintf(`You are a financial sentiment classifier.
Classify the sentiment of the following news text toward the companies it mentions.
Respond with ONLY a JSON object of this exact shape, no markdown:
{"prob_pos": <float>, "prob_neg": <float>, "prob_neu": <float>, "score": <float>}
The three probabilities must sum to 1.0 and score must equal prob_pos - prob_neg.

Text:
%s`, text)
}

func (r *geminiModelRepository) ScoreSentiment(ctx context.Context, text string) (*dto.Sentiment, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buildSentimentPrompt(text), "user"),
	}
	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Model.SentimentModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to request sentiment: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("invalid sentiment response: no content found")
	}

	jsonString := strings.Trim(resp.Candidates[0].Content.Parts[0].Text, "`json\n`")

	var sentiment dto.Sentiment
	if err := json.Unmarshal([]byte(jsonString), &sentiment); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sentiment response: %w", err)
	}
	sentiment.Model = r.cfg.Model.SentimentModel

	if err := sentiment.Validate(); err != nil {
		return nil, fmt.Errorf("sentiment model violated output contract: %w", err)
	}

	return &sentiment, nil
}

func (r *geminiModelRepository) Embed(ctx context.Context, text string) (*dto.EmbeddingVector, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromText(text, "user"),
	}
	dims := int32(dto.EmbeddingDims)
	resp, err := r.genAiClient.Models.EmbedContent(ctx, r.cfg.Model.EmbeddingModel, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("invalid embedding response: no values found")
	}

	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}

	embed := &dto.EmbeddingVector{
		Vector: vector,
		Model:  r.cfg.Model.EmbeddingModel,
		Dims:   len(vector),
	}
	if err := embed.Validate(); err != nil {
		return nil, fmt.Errorf("embedding model violated output contract: %w", err)
	}

	return embed, nil
}
