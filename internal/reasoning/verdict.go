package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Anomaly types the model may assign.
const (
	TypeStressEating  = "stress eating"
	TypeImpulseBuying = "impulse buying"
	TypeHighFrequency = "high frequency anomaly"
	TypeNone          = "None"

	normalReason = "Normal Transaction"
)

var anomalyTypes = map[string]string{
	TypeStressEating:  TypeStressEating,
	TypeImpulseBuying: TypeImpulseBuying,
	TypeHighFrequency: TypeHighFrequency,
	"none":            TypeNone,
	"":                TypeNone,
}

// Verdict is the judgement of the reasoning model on one candidate.
type Verdict struct {
	Anomaly     bool   `json:"anomaly"`
	AnomalyType string `json:"anomaly_type"`
	Reason      string `json:"reason"`
}

// ParseVerdict decodes a model reply into a normalized Verdict. Markdown
// fences and text around the JSON object are tolerated.
func ParseVerdict(raw string) (*Verdict, error) {
	clean := cleanModelJSON(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return nil, fmt.Errorf("ParseVerdict: unmarshal JSON: %w\nraw response: %s", err, raw)
	}
	if err := v.normalize(); err != nil {
		return nil, fmt.Errorf("ParseVerdict: %w", err)
	}
	return &v, nil
}

func (v *Verdict) normalize() error {
	t, ok := anomalyTypes[strings.ToLower(strings.TrimSpace(v.AnomalyType))]
	if !ok {
		return fmt.Errorf("unknown anomaly_type %q", v.AnomalyType)
	}
	v.AnomalyType = t
	v.Reason = strings.TrimSpace(v.Reason)

	if !v.Anomaly {
		v.AnomalyType = TypeNone
		v.Reason = normalReason
		return nil
	}
	if v.AnomalyType == TypeNone {
		return fmt.Errorf("anomaly without an anomaly_type")
	}
	return nil
}

// cleanModelJSON strips Markdown fences and keeps the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
