package firestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHistoryRepositoryWithClient_DefaultCollection(t *testing.T) {
	assert.Equal(t, DefaultCollection, NewHistoryRepositoryWithClient(nil, "").Collection())
	assert.Equal(t, "receipts", NewHistoryRepositoryWithClient(nil, "receipts").Collection())
	assert.NoError(t, NewHistoryRepositoryWithClient(nil, "").Close())
}

func TestWithUserID(t *testing.T) {
	rec := map[string]interface{}{"amount": 3.5, "user_id": "someone-else"}
	out := withUserID(rec, "u1")

	assert.Equal(t, "u1", out["user_id"])
	assert.Equal(t, 3.5, out["amount"])
	assert.Equal(t, "someone-else", rec["user_id"], "input is not modified")
}
