package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// JSONInstruction is appended to system prompts of services that expect a JSON object
const JSONInstruction = "Respond with a single valid JSON object and nothing else."

// CompleteJSON runs the request and decodes the JSON object in the reply into v
func CompleteJSON(ctx context.Context, c Completer, req Request, v any) error {
	if !strings.Contains(req.System, JSONInstruction) {
		req.System = strings.TrimSpace(req.System + "\n\n" + JSONInstruction)
	}
	out, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	return DecodeJSON(out, v)
}

// DecodeJSON extracts a JSON object from model output and unmarshals it
func DecodeJSON(output string, v any) error {
	cleaned := CleanJSON(output)
	if cleaned == "" {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}
	return nil
}

// CleanJSON strips markdown fences and surrounding prose from model output
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "```json"); idx != -1 {
		s = s[idx+7:]
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		// Skip optional language identifier on the fence line
		if nl := strings.Index(s, "\n"); nl != -1 && nl < 20 {
			s = s[nl+1:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}

	// Look for '{"' first to avoid matching braces in prose
	start := strings.Index(s, `{"`)
	if start == -1 {
		start = strings.Index(s, "{")
	}
	end := strings.LastIndex(s, "}")
	if start != -1 && end > start {
		return s[start : end+1]
	}

	return s
}

// FlexString accepts a JSON string, number, bool, null or list of those.
// Lists are joined with ", ".
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FlexString(flatten(raw, ", "))
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// FlexList accepts a JSON list or a single scalar
type FlexList []string

func (f *FlexList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out []string
	switch v := raw.(type) {
	case nil:
	case []any:
		for _, item := range v {
			if s := strings.TrimSpace(flatten(item, ", ")); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := strings.TrimSpace(flatten(v, ", ")); s != "" {
			out = []string{s}
		}
	}
	*f = out
	return nil
}

// FlexInt accepts an integer, a float (rounded) or a numeric string.
// Anything else leaves Valid false.
type FlexInt struct {
	Value int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case float64:
		*f = roundInt(v)
	case string:
		s := strings.TrimSpace(v)
		if i := strings.Index(s, "/"); i != -1 {
			s = strings.TrimSpace(s[:i]) // "7/10"
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*f = roundInt(n)
		} else {
			*f = FlexInt{}
		}
	default:
		*f = FlexInt{}
	}
	return nil
}

// roundInt saturates at the int32 range so huge scores still clamp to the top
// of a rating scale instead of wrapping.
func roundInt(v float64) FlexInt {
	switch {
	case math.IsNaN(v):
		return FlexInt{}
	case v > math.MaxInt32:
		return FlexInt{Value: math.MaxInt32, Valid: true}
	case v < math.MinInt32:
		return FlexInt{Value: math.MinInt32, Valid: true}
	}
	return FlexInt{Value: int(math.Round(v)), Valid: true}
}

func flatten(v any, sep string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(flatten(item, sep)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
