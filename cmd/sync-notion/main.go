package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/spend-signals/internal/app"
	"github.com/dvloznov/spend-signals/internal/config"
	"github.com/dvloznov/spend-signals/internal/logger"
	"github.com/dvloznov/spend-signals/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize structured logger
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	// Parse CLI flags
	sinceStr := flag.String("since", "", "Sync assessments created on or after this date, YYYY-MM-DD (default: 7 days ago)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN env)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDBID, "Notion database ID (or set NOTION_DB_ID env)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	since := time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
	if *sinceStr != "" {
		since, err = time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			log.Fatal().Err(err).Str("since", *sinceStr).Msg("Error: invalid since format, expected YYYY-MM-DD")
		}
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if application.Assessments == nil {
		log.Fatal().Msg("ASSESSMENT_STORE must be bigquery or sqlite to sync assessments")
	}

	notionClient := notionsync.NewNotionClient(*notionToken)

	result, err := notionsync.SyncAssessments(ctx, application.Assessments, notionClient, *notionDBID, since, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d flagged of %d, %d created, %d updated, %d failed.\n",
		result.Flagged, result.Listed, result.Created, result.Updated, result.Failed)
}
