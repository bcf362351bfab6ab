package utils

import (
	"encoding/json"
	"strings"
)

// ErrJSON produces a standard JSON error response.
func ErrJSON(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   msg,
	}
}

// PrettyJSON marshals with indentation.
func PrettyJSON(v any) string {
	data, _ := json.MarshalIndent(v, "", "  ")
	return string(data)
}

// LimitStr returns a string truncated to n bytes with "..." appended if longer.
func LimitStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// CleanJSON strips what models wrap around a JSON object: a reasoning
// preamble, markdown fences and surrounding prose.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if _, after, ok := strings.Cut(s, "</think>"); ok {
		s = strings.TrimSpace(after)
	}
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		// Drop the info string (```json) and the closing fence.
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			rest = rest[nl+1:]
		}
		if end := strings.LastIndex(rest, "```"); end != -1 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}
	if !strings.HasPrefix(s, "{") {
		start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
		if start != -1 && end > start {
			s = s[start : end+1]
		}
	}
	return s
}
