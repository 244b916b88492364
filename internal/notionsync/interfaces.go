package notionsync

import (
	"context"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// NotionService defines the interface for interacting with Notion API.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// CreatePage creates a new page in a Notion database with the given properties.
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)

	// UpdatePage updates an existing Notion page with the given properties.
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)

	// QueryDatabase queries a Notion database with the given filter.
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// AssessmentLister returns stored assessments created at or after since.
type AssessmentLister interface {
	ListAssessmentsSince(ctx context.Context, since time.Time) ([]*domain.Assessment, error)
}
