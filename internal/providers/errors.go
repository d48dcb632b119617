package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ChamsBouzaiene/autobuild/internal/engine"
	"google.golang.org/genai"
)

// wrapError attaches HTTP status and Retry-After metadata so the engine can
// classify the failure.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	status, retryAfter := extractErrorMetadata(err)
	return engine.WrapLLMError(err, status, retryAfter)
}

// extractErrorMetadata extracts HTTP status code and Retry-After from an
// SDK error. Typed errors are preferred; otherwise the message is scanned.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, retryDelayFromDetails(apiErr.Details)
	}

	errStr := err.Error()
	var httpStatus int
	for _, code := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusPaymentRequired,
	} {
		if strings.Contains(errStr, fmt.Sprint(code)) {
			httpStatus = code
			break
		}
	}

	var retryAfter string
	lower := strings.ToLower(errStr)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			parts := strings.Fields(strings.TrimLeft(errStr[idx+len(marker):], ": "))
			if len(parts) > 0 {
				retryAfter = strings.TrimSuffix(parts[0], "s")
			}
			break
		}
	}

	return httpStatus, retryAfter
}

// retryDelayFromDetails reads google.rpc.RetryInfo ("retryDelay": "12s").
func retryDelayFromDetails(details []map[string]any) string {
	for _, d := range details {
		v, ok := d["retryDelay"]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		return strings.TrimSuffix(s, "s")
	}
	return ""
}

// schemaObject decodes a tool's JSON schema into the generic map every SDK
// accepts for function parameters.
func schemaObject(ts engine.ToolSchema) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(ts.JSONSchema, &obj); err != nil {
		return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
	}
	return obj, nil
}

// decodeArgs parses raw argument JSON, returning an empty map for
// malformed or missing input so the tool's own validation reports it.
func decodeArgs(raw []byte) map[string]any {
	args := make(map[string]any)
	if len(raw) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return make(map[string]any)
	}
	return args
}
