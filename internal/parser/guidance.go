package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"salesagent/pkg/agenttypes"
)

// guidanceDocument is the wire shape of a guidance response. Scores are decoded
// loosely because models emit them as numbers or numeric strings.
type guidanceDocument struct {
	Stage      string         `json:"stage"`
	Advice     string         `json:"stage_guidance"`
	Scores     map[string]any `json:"lead_qualification_score"`
	Signals    []string       `json:"buying_signals_detected"`
	Objections []string       `json:"detected_objections"`
	Notes      []string       `json:"notes"`
}

// guidanceKeys are the fields that make a JSON object a guidance document.
var guidanceKeys = []string{
	"stage",
	"stage_guidance",
	"lead_qualification_score",
	"buying_signals_detected",
	"detected_objections",
}

// DecodeGuidance decodes a guidance document. When no valid document is found the
// raw text becomes the advice and every structured field is empty; ok reports
// which case applied. An object that sets none of the guidance keys is not a
// guidance document.
func DecodeGuidance(raw string) (agenttypes.Guidance, bool) {
	fallback := agenttypes.Guidance{Advice: strings.TrimSpace(raw)}

	block, found := ExtractBlock(raw)
	if !found {
		return fallback, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &fields); err != nil || !hasGuidanceKey(fields) {
		return fallback, false
	}

	var doc guidanceDocument
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return fallback, false
	}

	g := agenttypes.Guidance{
		Stage:      agenttypes.ConversationStage(strings.ToLower(strings.TrimSpace(doc.Stage))),
		Advice:     doc.Advice,
		Signals:    doc.Signals,
		Objections: doc.Objections,
		Notes:      doc.Notes,
	}
	if len(doc.Scores) > 0 {
		g.Scores = make(map[string]int, len(doc.Scores))
		for k, v := range doc.Scores {
			if n, err := toInt(v); err == nil {
				g.Scores[k] = n
			}
		}
	}
	return g, true
}

func hasGuidanceKey(fields map[string]json.RawMessage) bool {
	for _, key := range guidanceKeys {
		if value, ok := fields[key]; ok && string(value) != "null" {
			return true
		}
	}
	return false
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n)), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		return int(math.Round(f)), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported score value %v", v)
	}
}
