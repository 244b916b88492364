package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/spend-signals/internal/analytics"
)

const basePrompt = "You are an expert in the spending behaviour of individuals.\n" +
	"You receive one transaction of a user and statistics computed from that user's transaction history.\n" +
	"Decide whether the transaction is a case of stress eating, impulse buying or a high frequency anomaly.\n" +
	"Take the merchant, merchant category, time and amount of the transaction into account together with the statistics.\n\n" +
	"Statistics:\n" +
	"- rolling_amount: z-score of the log amount against rolling statistics over the most recent transactions.\n" +
	"- bin_hour_amount: z-score of the log amount against past transactions in the same 3-hour slot (slots 0-7).\n" +
	"- merchant_cat_amount: z-score of the log amount against past transactions in the same merchant category.\n" +
	"- merchant_amount: z-score of the log amount against past transactions at the same merchant.\n" +
	"- high_freq_low_volume: true when time since the previous transaction and the amount are both unusually low for the slot.\n" +
	"A z_score of null means there was not enough history to compute it.\n" +
	"Choose z-score thresholds from your own judgement, for example +-1, +-1.5 or +-2.\n\n"

const rulesPrompt = "Output STRICT JSON only, a single object with exactly these fields:\n" +
	"- \"anomaly\": boolean\n" +
	"- \"anomaly_type\": one of \"stress eating\", \"impulse buying\", \"high frequency anomaly\", \"None\"\n" +
	"- \"reason\": at most two sentences of psychological, not statistical, reasoning\n\n" +
	"If anomaly is false, anomaly_type must be \"None\" and reason must be \"Normal Transaction\".\n" +
	"Do NOT wrap the response in code fences.\n"

// buildPrompt renders the instructions, the bundle and the candidate.
func buildPrompt(candidate analytics.RawRecord, bundle *analytics.Bundle) (string, error) {
	if bundle == nil {
		return "", fmt.Errorf("buildPrompt: nil bundle")
	}

	stats, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal bundle: %w", err)
	}
	tx, err := json.MarshalIndent(candidate, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal candidate: %w", err)
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(rulesPrompt)
	b.WriteString("\nHistorical stats:\n")
	b.Write(stats)
	b.WriteString("\n\nCurrent transaction details:\n")
	b.Write(tx)
	b.WriteString("\n")
	return b.String(), nil
}
