package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"memoria/internal/graph"
	apperrors "memoria/pkg/errors"
	"memoria/pkg/logger"
)

const systemPersona = "You are a helpful, attentive conversational companion. " +
	"Use the remembered context below when it is relevant, but never recite it verbatim."

// LLMAdapter handles communication with the LLM via an OpenAI-compatible API
type LLMAdapter struct {
	client *openai.Client
	model  string
	mu     sync.RWMutex // Protects model field for concurrent access
	logger *zap.Logger
}

// NewLLMAdapter creates a new LLM adapter
func NewLLMAdapter(baseURL, apiKey, modelID string) *LLMAdapter {
	// Proxies like LiteLLM accept a dummy key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL + "/v1"

	return &LLMAdapter{
		client: openai.NewClientWithConfig(config),
		model:  modelID,
		logger: logger.Get(),
	}
}

// SetModel updates the model used by this adapter
func (a *LLMAdapter) SetModel(model string) {
	if model != "" {
		a.mu.Lock()
		a.model = model
		a.mu.Unlock()
		a.logger.Debug("LLM adapter model updated", zap.String("model", model))
	}
}

// GetModel returns the current model
func (a *LLMAdapter) GetModel() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model
}

// Reply generates a conversational response grounded in the given
// memories. Memories arrive most urgent first; their summaries go into
// the system prompt.
func (a *LLMAdapter) Reply(ctx context.Context, memories []graph.Edge, userMsg string) (string, error) {
	return a.Generate(ctx, buildSystemPrompt(memories), userMsg)
}

// Generate sends a request to the LLM and returns the response content
func (a *LLMAdapter) Generate(ctx context.Context, systemPrompt, userMsg string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userMsg,
		},
	}

	a.mu.RLock()
	currentModel := a.model
	a.mu.RUnlock()

	req := openai.ChatCompletionRequest{
		Model:       currentModel,
		Messages:    messages,
		Temperature: 0.7,
	}

	// Retry logic with exponential backoff
	var resp openai.ChatCompletionResponse
	var err error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			a.logger.Warn("Retrying LLM request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return "", apperrors.NewContextCancelled("llm generate", ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = a.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}

		a.logger.Error("LLM request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", currentModel),
		)
	}

	if err != nil {
		return "", apperrors.NewLLMFailed(currentModel, maxRetries, true, err)
	}

	if len(resp.Choices) == 0 {
		return "", apperrors.ErrLLMNoResponse
	}

	content := resp.Choices[0].Message.Content

	a.logger.Debug("LLM response generated",
		zap.String("model", currentModel),
		zap.Int("length", len(content)),
	)

	return content, nil
}

// buildSystemPrompt folds memory summaries into the persona prompt.
func buildSystemPrompt(memories []graph.Edge) string {
	if len(memories) == 0 {
		return systemPersona
	}

	var sb strings.Builder
	sb.WriteString(systemPersona)
	sb.WriteString("\n\nThings you remember:\n")
	for _, m := range memories {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", m.EdgeType, m.Summary))
	}
	return sb.String()
}
