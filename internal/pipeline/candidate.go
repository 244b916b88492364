package pipeline

import (
	"strings"

	"github.com/dvloznov/spend-signals/internal/analytics"
)

func candidateLabel(c analytics.RawRecord, field string) string {
	if s, ok := c[field].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return analytics.DefaultLabel
}
