package completion

import (
	"context"
	"fmt"

	"github.com/aviationai/chatengine"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"

	// Prompt window budget for prior turns.
	defaultHistoryTokens   = 4000
	defaultHistoryMessages = 40
)

// OpenAIConfig holds configuration for the OpenAI-backed completer.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // optional, for OpenAI-compatible endpoints
	Model          string
	EmbeddingModel string
	SystemPrompt   string

	// HistoryTokenLimit and HistoryMessageLimit bound how much prior
	// transcript is sent with each request. Zero means the default.
	HistoryTokenLimit   int
	HistoryMessageLimit int
}

// OpenAIClient implements Completer and Embedder against the OpenAI API
// or any OpenAI-compatible endpoint.
type OpenAIClient struct {
	client          openai.Client
	model           string
	embeddingModel  string
	systemPrompt    string
	historyTokens   int
	historyMessages int
}

// NewOpenAIClient creates a new OpenAI-backed completer.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, chatengine.ErrInvalidConfig
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	historyTokens := cfg.HistoryTokenLimit
	if historyTokens <= 0 {
		historyTokens = defaultHistoryTokens
	}
	historyMessages := cfg.HistoryMessageLimit
	if historyMessages <= 0 {
		historyMessages = defaultHistoryMessages
	}

	return &OpenAIClient{
		client:          openai.NewClient(opts...),
		model:           model,
		embeddingModel:  embeddingModel,
		systemPrompt:    cfg.SystemPrompt,
		historyTokens:   historyTokens,
		historyMessages: historyMessages,
	}, nil
}

// Complete implements Completer. Transient API errors are retried with
// exponential backoff before the failure is surfaced.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: c.buildMessages(req),
	}

	var reqOpts []option.RequestOption
	if req.AuthToken != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-User-Token", req.AuthToken))
	}

	var lastErr error
	for attempt := range maxRetries + 1 {
		resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && isRetryableError(err) {
				if sleepErr := sleepWithContext(ctx, retryDelay(attempt)); sleepErr != nil {
					break
				}
				continue
			}
			break
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("completion returned no choices")
			break
		}
		return &Result{Text: resp.Choices[0].Message.Content}, nil
	}

	return nil, fmt.Errorf("%w: %v", chatengine.ErrCompletion, lastErr)
}

// Embed implements Embedder.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding returned no data")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// buildMessages converts a Request into OpenAI chat params: system
// prompt, then the prior turns that fit the prompt window, then the new
// user input.
func (c *OpenAIClient) buildMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	var params []openai.ChatCompletionMessageParamUnion

	if c.systemPrompt != "" {
		params = append(params, openai.SystemMessage(c.systemPrompt))
	}

	history := chatengine.TruncateHistory(req.History, c.historyTokens, c.historyMessages)
	for _, msg := range history {
		switch msg.Role {
		case chatengine.RoleAssistant:
			params = append(params, openai.AssistantMessage(msg.Content))
		default:
			params = append(params, openai.UserMessage(msg.Content))
		}
	}

	params = append(params, openai.UserMessage(req.Prompt))
	return params
}

// Compile-time checks
var (
	_ Completer = (*OpenAIClient)(nil)
	_ Embedder  = (*OpenAIClient)(nil)
)
