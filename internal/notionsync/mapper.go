package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// Property names of the assessments database.
const (
	propAssessmentID = "Assessment ID"
	propUser         = "User"
	propDate         = "Transaction Date"
	propAmount       = "Amount"
	propMerchant     = "Merchant"
	propCategory     = "Category"
	propVelocity     = "Velocity Flag"
	propAnomaly      = "Anomaly"
	propAnomalyType  = "Anomaly Type"
	propReason       = "Reason"
)

// maxRichTextLen is the Notion limit for one rich text object.
const maxRichTextLen = 2000

// AssessmentToNotionProperties converts an assessment to Notion properties.
// Empty optional fields are left out so updates don't clear them.
func AssessmentToNotionProperties(a *domain.Assessment) notionapi.Properties {
	amount, _ := a.Amount.Float64()
	date := notionapi.Date(a.TransactionTS.UTC())

	props := notionapi.Properties{
		propAssessmentID: notionapi.TitleProperty{
			Title: []notionapi.RichText{textObject(a.AssessmentID)},
		},
		propUser: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textObject(a.UserID)},
		},
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		propAmount: notionapi.NumberProperty{
			Number: amount,
		},
		propVelocity: notionapi.CheckboxProperty{
			Checkbox: a.VelocityFlag,
		},
	}

	if a.Merchant != "" {
		props[propMerchant] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textObject(a.Merchant)},
		}
	}
	if a.MerchantCategory != "" {
		props[propCategory] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: a.MerchantCategory},
		}
	}

	// Only present when the reasoning model ran.
	if a.Anomaly != nil {
		props[propAnomaly] = notionapi.CheckboxProperty{
			Checkbox: *a.Anomaly,
		}
	}
	if a.AnomalyType != "" {
		props[propAnomalyType] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: a.AnomalyType},
		}
	}
	if a.Reason != "" {
		props[propReason] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{textObject(truncate(a.Reason, maxRichTextLen))},
		}
	}

	return props
}

func textObject(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// extractAssessmentID reads the title of an assessment page.
func extractAssessmentID(page notionapi.Page) string {
	prop, ok := page.Properties[propAssessmentID]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}
