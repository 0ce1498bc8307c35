// Package jsonutil parses JSON out of LLM chat replies, which routinely
// arrive wrapped in markdown fences, truncated, or with minor syntax damage.
package jsonutil

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
)

// Parse attempts to parse a potentially malformed JSON string.
func Parse(jsonStr string, v interface{}) error {
	err := jsoniter.UnmarshalFromString(jsonStr, v)
	if err == nil {
		return nil
	}
	originalErr := err

	// Truncated replies are usually missing the final brace.
	if err := jsoniter.UnmarshalFromString(jsonStr+"}", v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		return originalErr
	}

	if err := jsoniter.UnmarshalFromString(repaired, v); err == nil {
		return nil
	}

	return originalErr
}

// ExtractBlock strips markdown code fences and any prose around the first
// JSON object in the reply.
func ExtractBlock(reply string) string {
	s := strings.TrimSpace(reply)

	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		s = s[start : end+1]
	}

	return strings.TrimSpace(s)
}

// ParseReply extracts the JSON payload from an LLM reply and parses it.
func ParseReply(reply string, v interface{}) error {
	return Parse(ExtractBlock(reply), v)
}
