package notionsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/spend-signals/internal/domain"
)

// MockNotionService is a mock implementation of NotionService for testing.
type MockNotionService struct {
	CreatePageFunc    func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePageFunc    func(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabaseFunc func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)

	created []notionapi.Properties
	updated []string
}

func (m *MockNotionService) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.created = append(m.created, properties)
	if m.CreatePageFunc != nil {
		return m.CreatePageFunc(ctx, databaseID, properties)
	}
	return &notionapi.Page{ID: "new-page"}, nil
}

func (m *MockNotionService) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	m.updated = append(m.updated, pageID)
	if m.UpdatePageFunc != nil {
		return m.UpdatePageFunc(ctx, pageID, properties)
	}
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (m *MockNotionService) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.QueryDatabaseFunc != nil {
		return m.QueryDatabaseFunc(ctx, databaseID, filter)
	}
	return &notionapi.DatabaseQueryResponse{}, nil
}

// MockAssessmentLister is a mock implementation of AssessmentLister for testing.
type MockAssessmentLister struct {
	ListAssessmentsSinceFunc func(ctx context.Context, since time.Time) ([]*domain.Assessment, error)
}

func (m *MockAssessmentLister) ListAssessmentsSince(ctx context.Context, since time.Time) ([]*domain.Assessment, error) {
	return m.ListAssessmentsSinceFunc(ctx, since)
}

func listerOf(assessments ...*domain.Assessment) *MockAssessmentLister {
	return &MockAssessmentLister{ListAssessmentsSinceFunc: func(ctx context.Context, since time.Time) ([]*domain.Assessment, error) {
		return assessments, nil
	}}
}

func titlePage(pageID, assessmentID string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(pageID),
		Properties: notionapi.Properties{
			propAssessmentID: &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: assessmentID}},
			},
		},
	}
}

func testAssessment(id string, velocity bool, anomaly *bool) *domain.Assessment {
	return &domain.Assessment{
		AssessmentID:  id,
		UserID:        "u1",
		TransactionTS: time.Date(2024, 7, 15, 13, 0, 0, 0, time.UTC),
		Amount:        decimal.RequireFromString("42.50"),
		Merchant:      "Cafe",
		VelocityFlag:  velocity,
		Anomaly:       anomaly,
	}
}

func TestSyncAssessments_CreatesAndUpdatesFlagged(t *testing.T) {
	yes, no := true, false
	lister := listerOf(
		testAssessment("a1", true, nil),
		testAssessment("a2", false, &yes),
		testAssessment("a3", false, &no),
		testAssessment("a4", false, nil),
	)
	notion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{titlePage("page-a2", "a2")}}, nil
		},
	}

	result, err := SyncAssessments(context.Background(), lister, notion, "db", time.Time{}, false)
	require.NoError(t, err)

	assert.Equal(t, &SyncResult{Listed: 4, Flagged: 2, Created: 1, Updated: 1}, result)
	assert.Equal(t, []string{"page-a2"}, notion.updated)
	require.Len(t, notion.created, 1)
	title := notion.created[0][propAssessmentID].(notionapi.TitleProperty)
	assert.Equal(t, "a1", title.Title[0].Text.Content)
}

func TestSyncAssessments_DryRunWritesNothing(t *testing.T) {
	notion := &MockNotionService{}
	result, err := SyncAssessments(context.Background(), listerOf(testAssessment("a1", true, nil)), notion, "db", time.Time{}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Empty(t, notion.created)
	assert.Empty(t, notion.updated)
}

func TestSyncAssessments_NothingFlaggedSkipsNotion(t *testing.T) {
	notion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			t.Fatal("QueryDatabase should not be called")
			return nil, nil
		},
	}
	result, err := SyncAssessments(context.Background(), listerOf(testAssessment("a1", false, nil)), notion, "db", time.Time{}, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Flagged)
}

func TestSyncAssessments_Errors(t *testing.T) {
	t.Run("lister error", func(t *testing.T) {
		lister := &MockAssessmentLister{ListAssessmentsSinceFunc: func(ctx context.Context, since time.Time) ([]*domain.Assessment, error) {
			return nil, errors.New("db down")
		}}
		_, err := SyncAssessments(context.Background(), lister, &MockNotionService{}, "db", time.Time{}, false)
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("create failure is counted", func(t *testing.T) {
		notion := &MockNotionService{
			CreatePageFunc: func(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
				return nil, errors.New("rate limited")
			},
		}
		result, err := SyncAssessments(context.Background(), listerOf(testAssessment("a1", true, nil)), notion, "db", time.Time{}, false)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		assert.Equal(t, 0, result.Created)
	})
}

func TestQueryAllNotionPages_FollowsCursor(t *testing.T) {
	var cursors []notionapi.Cursor
	notion := &MockNotionService{
		QueryDatabaseFunc: func(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
			cursors = append(cursors, filter.StartCursor)
			if filter.StartCursor == "" {
				return &notionapi.DatabaseQueryResponse{
					Results:    []notionapi.Page{titlePage("p1", "a1")},
					HasMore:    true,
					NextCursor: "next",
				}, nil
			}
			return &notionapi.DatabaseQueryResponse{Results: []notionapi.Page{titlePage("p2", "a2")}}, nil
		},
	}

	pages, err := queryAllNotionPages(context.Background(), notion, "db")
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []notionapi.Cursor{"", "next"}, cursors)
}
