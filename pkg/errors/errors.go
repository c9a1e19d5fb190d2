package errors

import (
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeDiscord represents Discord-related errors
	ErrorTypeDiscord ErrorType = "discord"
	// ErrorTypeGraph represents graph store errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeScheduler represents decay scheduler errors
	ErrorTypeScheduler ErrorType = "scheduler"
	// ErrorTypeIngest represents document ingestion errors
	ErrorTypeIngest ErrorType = "ingest"
	// ErrorTypeLLM represents LLM adapter errors
	ErrorTypeLLM ErrorType = "llm"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when the graph backend cannot be reached
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to graph store: %s", uri), err),
		URI:       uri,
	}
}

// ErrGraphQueryFailed is returned when a graph query fails
type ErrGraphQueryFailed struct {
	*BaseError
	Query string
}

func NewGraphQueryFailed(query string, err error) *ErrGraphQueryFailed {
	return &ErrGraphQueryFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("query failed: %s", query), err),
		Query:     query,
	}
}

// ErrGuildNotFound is returned when a guild is not registered in the store
type ErrGuildNotFound struct {
	*BaseError
	GuildID string
}

func NewGuildNotFound(guildID string) *ErrGuildNotFound {
	return &ErrGuildNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("guild not found: %s", guildID), nil),
		GuildID:   guildID,
	}
}

// ErrEdgeNotFound is returned when a memory edge is not found
type ErrEdgeNotFound struct {
	*BaseError
	EdgeID string
}

func NewEdgeNotFound(edgeID string) *ErrEdgeNotFound {
	return &ErrEdgeNotFound{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("edge not found: %s", edgeID), nil),
		EdgeID:    edgeID,
	}
}

// Scheduler Errors

// ErrNoGuildSource is returned when the scheduler has no guild source configured
var ErrNoGuildSource = NewBaseError(ErrorTypeScheduler, "no guild source configured", nil)

// ErrGuildDecayFailed is returned when decay processing fails for a guild
type ErrGuildDecayFailed struct {
	*BaseError
	GuildID string
	Stage   string // "config", "recompute", "prune"
}

func NewGuildDecayFailed(guildID, stage string, err error) *ErrGuildDecayFailed {
	return &ErrGuildDecayFailed{
		BaseError: NewBaseError(ErrorTypeScheduler, fmt.Sprintf("decay %s failed for guild %s", stage, guildID), err),
		GuildID:   guildID,
		Stage:     stage,
	}
}

// Discord Errors

// ErrDiscordSessionUnavailable is returned when Discord session is not available
var ErrDiscordSessionUnavailable = NewBaseError(ErrorTypeDiscord, "Discord session not available", nil)

// ErrDiscordMessageSendFailed is returned when sending a Discord message fails
type ErrDiscordMessageSendFailed struct {
	*BaseError
	ChannelID string
}

func NewDiscordMessageSendFailed(channelID string, err error) *ErrDiscordMessageSendFailed {
	return &ErrDiscordMessageSendFailed{
		BaseError: NewBaseError(ErrorTypeDiscord, "failed to send message", err),
		ChannelID: channelID,
	}
}

// LLM Errors

// ErrLLMFailed is returned when an LLM request fails after retries
type ErrLLMFailed struct {
	*BaseError
	Model     string
	Attempts  int
	Retryable bool
}

func NewLLMFailed(model string, attempts int, retryable bool, err error) *ErrLLMFailed {
	return &ErrLLMFailed{
		BaseError: NewBaseError(ErrorTypeLLM, fmt.Sprintf("LLM request failed after %d attempts", attempts), err),
		Model:     model,
		Attempts:  attempts,
		Retryable: retryable,
	}
}

// ErrLLMNoResponse is returned when the LLM returns no choices
var ErrLLMNoResponse = NewBaseError(ErrorTypeLLM, "no response from LLM", nil)

// Ingest Errors

// ErrIngestFetchFailed is returned when a document fetch fails
type ErrIngestFetchFailed struct {
	*BaseError
	URL string
}

func NewIngestFetchFailed(url string, err error) *ErrIngestFetchFailed {
	return &ErrIngestFetchFailed{
		BaseError: NewBaseError(ErrorTypeIngest, fmt.Sprintf("failed to fetch document: %s", url), err),
		URL:       url,
	}
}

// Config Errors

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Context Errors

// ErrContextCancelled is returned when context is cancelled
type ErrContextCancelled struct {
	*BaseError
	Operation string
}

func NewContextCancelled(operation string, err error) *ErrContextCancelled {
	return &ErrContextCancelled{
		BaseError: NewBaseError(ErrorTypeContext, fmt.Sprintf("context cancelled: %s", operation), err),
		Operation: operation,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	if baseErr, ok := err.(*BaseError); ok {
		return baseErr.Type == errType
	}
	// Check wrapped errors
	if baseErr, ok := err.(interface{ Unwrap() error }); ok {
		return IsErrorType(baseErr.Unwrap(), errType)
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	// Context errors are not retryable
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	if llmErr, ok := err.(*ErrLLMFailed); ok {
		return llmErr.Retryable
	}
	// Graph connection errors are retryable
	if IsErrorType(err, ErrorTypeGraph) {
		return true
	}
	return false
}
