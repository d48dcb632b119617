// Package engine provides agent orchestration functionality.
// This file contains error classification and handling.

package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorClass buckets provider errors by how the loop must react.
type ErrorClass string

const (
	ErrorClassTransient     ErrorClass = "transient"      // retry with backoff
	ErrorClassContextLength ErrorClass = "context_length" // compact, then continue
	ErrorClassFatal         ErrorClass = "fatal"          // surface to the loop
)

var transientMarkers = []string{
	"rate limit",
	"ratelimit",
	"429",
	"too many requests",
	"resource exhausted",
	"resource_exhausted",
	"overload",
	"503",
	"unavailable",
	"try again",
}

var contextLengthMarkers = []string{
	"context length",
	"context_length",
	"context window",
	"too long",
	"maximum context",
	"token limit",
	"exceeds the maximum",
	"too many tokens",
}

// ClassifyLLMError classifies an error from an LLM provider call.
// Context-length markers win over transient ones: an oversized request
// fails the same way however often it is retried.
func ClassifyLLMError(err error) ErrorClass {
	if err == nil {
		return ErrorClassFatal
	}

	errStr := strings.ToLower(err.Error())
	for _, m := range contextLengthMarkers {
		if strings.Contains(errStr, m) {
			return ErrorClassContextLength
		}
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.HTTPStatus != 0 {
		switch pe.HTTPStatus {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return ErrorClassTransient
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(errStr, m) {
			return ErrorClassTransient
		}
	}
	return ErrorClassFatal
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return err != nil && ClassifyLLMError(err) == ErrorClassTransient
}

// IsContextLength reports whether err means the request was too large.
func IsContextLength(err error) bool {
	return err != nil && ClassifyLLMError(err) == ErrorClassContextLength
}

// ProviderError wraps a provider failure with HTTP metadata.
type ProviderError struct {
	Err        error
	HTTPStatus int    // 0 when unknown
	RetryAfter string // raw Retry-After value, if any
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("provider error (status %d): %v", e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapLLMError wraps an LLM provider error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Err: err, HTTPStatus: httpStatus, RetryAfter: retryAfter}
}

// ExtractRetryAfter returns the provider's Retry-After hint, or 0.
func ExtractRetryAfter(err error) time.Duration {
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.RetryAfter == "" {
		return 0
	}
	var seconds int
	if _, scanErr := fmt.Sscanf(pe.RetryAfter, "%d", &seconds); scanErr == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, parseErr := time.Parse(time.RFC1123, pe.RetryAfter); parseErr == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// RetryExhaustedError indicates that all retry attempts have been exhausted.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsRetryExhausted checks if an error is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var re *RetryExhaustedError
	return errors.As(err, &re)
}

// ToolArgsError reports arguments that failed a tool's JSON schema.
type ToolArgsError struct {
	Tool     string
	Problems []string
}

func (e *ToolArgsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// EngineContextError tags an error with the loop position it happened at.
type EngineContextError struct {
	Err       error
	Iteration int
	Op        string // "llm_call", "compaction", ...
}

func (e *EngineContextError) Error() string {
	return fmt.Sprintf("[iter=%d op=%s] %v", e.Iteration, e.Op, e.Err)
}

func (e *EngineContextError) Unwrap() error { return e.Err }

// WrapWithContext wraps an error with execution context for debugging.
func WrapWithContext(err error, iteration int, op string) error {
	if err == nil {
		return nil
	}
	return &EngineContextError{Err: err, Iteration: iteration, Op: op}
}
