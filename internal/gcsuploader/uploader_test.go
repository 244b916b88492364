package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{name: "nested object", uri: "gs://spend-history/users/u1.json", wantBucket: "spend-history", wantObject: "users/u1.json"},
		{name: "top-level object", uri: "gs://b/u1.csv", wantBucket: "b", wantObject: "u1.csv"},
		{name: "wrong scheme", uri: "s3://b/u1.csv", wantErr: true},
		{name: "bucket only", uri: "gs://b", wantErr: true},
		{name: "empty object", uri: "gs://b/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestHistoryObjectName(t *testing.T) {
	assert.Equal(t, "history/u1.json", HistoryObjectName("/history/", "u1", ".json"))
	assert.Equal(t, "u1.csv", HistoryObjectName("", "u1", "csv"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("a/b.JSON"))
	assert.Equal(t, "text/csv", ContentType("b.csv"))
	assert.Equal(t, "application/octet-stream", ContentType("b.pdf"))
}
