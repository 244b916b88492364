// Package notionsync exports flagged assessments to a Notion database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/spend-signals/internal/domain"
	"github.com/dvloznov/spend-signals/internal/logger"
)

// SyncResult counts what a sync did.
type SyncResult struct {
	Listed  int
	Flagged int
	Created int
	Updated int
	Failed  int
}

// SyncAssessments pushes flagged assessments created since the given time to
// the Notion database. Pages are matched on the Assessment ID title, so
// running the sync twice updates instead of duplicating. In dry-run mode
// nothing is written.
func SyncAssessments(ctx context.Context, lister AssessmentLister, notionClient NotionService, notionDBID string, since time.Time, dryRun bool) (*SyncResult, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Time("since", since).
		Bool("dry_run", dryRun).
		Msg("Starting assessment sync to Notion")

	assessments, err := lister.ListAssessmentsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	result := &SyncResult{Listed: len(assessments)}
	var flagged []*domain.Assessment
	for _, a := range assessments {
		if a.Flagged() {
			flagged = append(flagged, a)
		}
	}
	result.Flagged = len(flagged)

	log.Info().
		Int("assessment_count", result.Listed).
		Int("flagged_count", result.Flagged).
		Msg("Retrieved assessments")

	if len(flagged) == 0 {
		return result, nil
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	existing := make(map[string]string, len(notionPages))
	for _, page := range notionPages {
		if id := extractAssessmentID(page); id != "" {
			existing[id] = string(page.ID)
		}
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	for _, a := range flagged {
		props := AssessmentToNotionProperties(a)
		pageID, found := existing[a.AssessmentID]

		if dryRun {
			action := "create"
			if found {
				action = "update"
			}
			log.Info().
				Str("assessment_id", a.AssessmentID).
				Str("action", action).
				Msg("[DRY RUN] Would sync assessment to Notion")
			if found {
				result.Updated++
			} else {
				result.Created++
			}
			continue
		}

		if found {
			if _, err := notionClient.UpdatePage(ctx, pageID, props); err != nil {
				log.Warn().
					Err(err).
					Str("assessment_id", a.AssessmentID).
					Str("page_id", pageID).
					Msg("Failed to update Notion page")
				result.Failed++
				continue
			}
			result.Updated++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("assessment_id", a.AssessmentID).
				Msg("Failed to create Notion page")
			result.Failed++
			continue
		}
		existing[a.AssessmentID] = string(page.ID)
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Bool("dry_run", dryRun).
		Msg("Assessment sync completed")

	return result, nil
}

// queryAllNotionPages follows the query cursor until the database is exhausted.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: defaultPageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
