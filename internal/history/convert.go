package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/domain"
)

// ToTransactions validates raw records and converts them for storage.
// Records carrying a transaction_id keep it; the others get a new one.
// The first invalid record aborts the conversion.
func ToTransactions(userID, source string, records []analytics.RawRecord, loc *time.Location) ([]*domain.Transaction, error) {
	txs := make([]*domain.Transaction, 0, len(records))
	for i, raw := range records {
		rec, err := analytics.ParseRecord(raw, i, loc)
		if err != nil {
			return nil, err
		}

		tx := &domain.Transaction{
			TransactionID:    stringField(raw, "transaction_id"),
			UserID:           userID,
			Timestamp:        rec.Timestamp.UTC(),
			Amount:           analytics.DecimalAmount(raw),
			Currency:         stringField(raw, "currency"),
			Merchant:         rec.Merchant,
			MerchantCategory: rec.MerchantCategory,
			Source:           source,
		}
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.New().String()
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func stringField(raw analytics.RawRecord, key string) string {
	s, _ := raw[key].(string)
	return s
}

// ToDocuments converts transactions into document-store records that
// FirestoreSource reads back.
func ToDocuments(txs []*domain.Transaction) []map[string]interface{} {
	docs := make([]map[string]interface{}, 0, len(txs))
	for _, tx := range txs {
		doc := map[string]interface{}{
			"transaction_id":                tx.TransactionID,
			analytics.FieldTimestamp:        tx.Timestamp,
			analytics.FieldAmount:           tx.Amount.InexactFloat64(),
			analytics.FieldMerchant:         tx.Merchant,
			analytics.FieldMerchantCategory: tx.MerchantCategory,
		}
		if tx.Currency != "" {
			doc["currency"] = tx.Currency
		}
		if tx.Source != "" {
			doc["source"] = tx.Source
		}
		docs = append(docs, doc)
	}
	return docs
}
