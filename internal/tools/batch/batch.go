package batch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/teemow/gcalkit/internal/calendar"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Result represents the result of a single item of a batch
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResult represents the aggregated results of a batch operation
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray parses a parameter that can be a single string, an
// array of strings, or a string holding a JSON array of strings
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var items []interface{}
			if err := json.Unmarshal([]byte(v), &items); err == nil {
				return ParseStringOrArray(items, paramName)
			}
		}
		return []string{v}, nil
	case []string:
		return ParseStringOrArray(toInterfaces(v), paramName)
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		result := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			if str == "" {
				return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
			}
			result = append(result, str)
		}
		return result, nil
	}

	return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// FormatResults creates a formatted JSON string from batch results
func FormatResults(results []Result) string {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}

	for _, r := range results {
		if r.Status == statusSuccess {
			br.Successful++
		} else {
			br.Failed++
		}
	}

	jsonBytes, _ := json.MarshalIndent(br, "", "  ")
	return string(jsonBytes)
}

// FromBatchResponse converts a calendar batch response into per-item
// results, ordered by correlation key
func FromBatchResponse(resp *calendar.BatchResponse) []Result {
	if resp == nil {
		return nil
	}

	keys := make([]string, 0, len(resp.Items))
	for key := range resp.Items {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	results := make([]Result, 0, len(keys))
	for _, key := range keys {
		item := resp.Items[key]
		if !item.OK() {
			results = append(results, Result{ID: key, Status: statusError, Error: itemError(item)})
			continue
		}
		results = append(results, NewSuccessResult(key, describeItem(item)))
	}
	return results
}

func itemError(item *calendar.BatchItemResponse) string {
	if item == nil {
		return "no response"
	}
	if item.Error != nil && item.Error.Message != "" {
		return fmt.Sprintf("%d: %s", item.Status, item.Error.Message)
	}
	return fmt.Sprintf("%d: %s", item.Status, item.StatusText)
}

func describeItem(item *calendar.BatchItemResponse) string {
	ev := item.Event
	if ev == nil {
		return item.StatusText
	}
	if ev.Summary != "" {
		return fmt.Sprintf("event %s: %s", ev.Id, ev.Summary)
	}
	return "event " + ev.Id
}

// NewSuccessResult creates a success result
func NewSuccessResult(id, message string) Result {
	return Result{
		ID:     id,
		Status: statusSuccess,
		Result: message,
	}
}

// NewErrorResult creates an error result
func NewErrorResult(id string, err error) Result {
	return Result{
		ID:     id,
		Status: statusError,
		Error:  err.Error(),
	}
}
