// Package parser extracts structured decisions from free-form language model output.
// Reasoning text is expected to carry one fenced JSON block; everything around it is
// commentary. Decoding never panics: failures are reported as *DecodeError values.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeErrorKind classifies why a reasoning output could not be decoded.
type DecodeErrorKind int

const (
	// ErrNoBlock means no structured block was found in the text.
	ErrNoBlock DecodeErrorKind = iota
	// ErrMalformed means a block was found but is not a valid JSON object.
	ErrMalformed
	// ErrMissingTool means the block parsed but names no tool.
	ErrMissingTool
)

// String returns the string representation of the kind.
func (k DecodeErrorKind) String() string {
	switch k {
	case ErrNoBlock:
		return "no_block"
	case ErrMalformed:
		return "malformed"
	case ErrMissingTool:
		return "missing_tool"
	default:
		return "unknown"
	}
}

// DecodeError is returned when reasoning output holds no usable action descriptor.
type DecodeError struct {
	Kind   DecodeErrorKind
	Detail string
	Cause  error
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case ErrNoBlock:
		return "no structured block found in reasoning output"
	case ErrMissingTool:
		return "structured block does not name a tool"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("failed to parse action JSON from reasoning output: %v", e.Cause)
		}
		return "failed to parse action JSON from reasoning output"
	}
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsDecodeError reports whether err is a *DecodeError and returns it.
func IsDecodeError(err error) (*DecodeError, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Descriptor is a decoded action: the rationale, the chosen tool and its arguments.
type Descriptor struct {
	Thought string
	Tool    string
	Args    map[string]any
}

// StringArg returns the named argument when it is a string.
func (d Descriptor) StringArg(name string) (string, bool) {
	v, ok := d.Args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

const fence = "```"

// ExtractBlock isolates the structured block in raw. It prefers the first ```json
// fence, then any fence whose body is a JSON object, and finally the outermost
// brace-delimited span. Fenced objects are read with a JSON decoder, so fences
// quoted inside string values do not end the block. When nothing parses, the
// first candidate is returned so the caller can report it as malformed.
func ExtractBlock(raw string) (string, bool) {
	tagged, candidate := fencedBlock(raw, true)
	if tagged != "" {
		return tagged, true
	}
	if block, _ := fencedBlock(raw, false); block != "" {
		return block, true
	}

	start := strings.Index(raw, "{")
	for i := start; i >= 0; {
		if block, ok := objectAt(raw[i:]); ok {
			return block, true
		}
		next := strings.Index(raw[i+1:], "{")
		if next < 0 {
			break
		}
		i += next + 1
	}
	if candidate != "" {
		return candidate, true
	}

	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// objectAt decodes the JSON object at the start of s and returns its source text.
func objectAt(s string) (string, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return "", false
	}
	return s[:dec.InputOffset()], true
}

// fencedBlock scans fences in order and returns the first fenced JSON object.
// With jsonOnly it accepts only fences tagged json; otherwise it accepts any
// fence whose body is an object. The second result is the raw body of the first
// json-tagged fence, whether or not it parsed.
func fencedBlock(raw string, jsonOnly bool) (string, string) {
	var candidate string
	rest := raw
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			return "", candidate
		}
		rest = rest[open+len(fence):]

		header := rest
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			header = rest[:nl]
			rest = rest[nl+1:]
		} else {
			rest = ""
		}
		tag := strings.ToLower(strings.TrimSpace(header))

		if !jsonOnly || tag == "json" {
			if block, ok := objectAt(rest); ok {
				return block, candidate
			}
		}

		closing := strings.Index(rest, fence)
		if jsonOnly && tag == "json" && candidate == "" {
			body := rest
			if closing >= 0 {
				body = rest[:closing]
			}
			candidate = strings.TrimSpace(body)
		}
		if closing < 0 {
			return "", candidate
		}
		rest = rest[closing+len(fence):]
	}
}

// DecodeAction decodes the action descriptor embedded in raw. Both the nested
// {"thought": ..., "action": {"tool": ..., ...}} shape and a flat
// {"tool": ..., ...} shape are accepted.
func DecodeAction(raw string) (Descriptor, error) {
	block, ok := ExtractBlock(raw)
	if !ok {
		return Descriptor{}, &DecodeError{Kind: ErrNoBlock}
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return Descriptor{}, &DecodeError{Kind: ErrMalformed, Detail: block, Cause: err}
	}

	thought, _ := doc["thought"].(string)
	if thought == "" {
		thought, _ = doc["rationale"].(string)
	}

	body, nested := doc["action"].(map[string]any)
	if !nested {
		body = doc
	}

	tool, _ := body["tool"].(string)
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return Descriptor{Thought: thought}, &DecodeError{Kind: ErrMissingTool, Detail: block}
	}

	args := make(map[string]any, len(body))
	for k, v := range body {
		if k == "tool" {
			continue
		}
		// flat shape: rationale sits beside the arguments
		if !nested && (k == "thought" || k == "rationale") {
			continue
		}
		args[k] = v
	}

	return Descriptor{Thought: thought, Tool: tool, Args: args}, nil
}
