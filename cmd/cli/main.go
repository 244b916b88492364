package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/app"
	"github.com/dvloznov/spend-signals/internal/config"
	"github.com/dvloznov/spend-signals/internal/gcsuploader"
	"github.com/dvloznov/spend-signals/internal/history"
	"github.com/dvloznov/spend-signals/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logger.NewFromConfig(cfg.LogLevel, cfg.LogFormat)

	switch os.Args[1] {
	case "score":
		runScore(cfg, log)
	case "import":
		runImport(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "init-tables":
		runInitTables(cfg, log)
	case "assessments":
		runAssessments(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Spend Signals CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  score        Score a candidate transaction against a user's history")
	fmt.Println("  import       Import a history file into the configured store")
	fmt.Println("  upload       Upload a history file to GCS")
	fmt.Println("  init-tables  Create the BigQuery / SQLite tables")
	fmt.Println("  assessments  List stored assessments")
	fmt.Println("  help         Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runScore(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	userID := fs.String("user", "", "User whose history is used")
	candidateJSON := fs.String("candidate", "", `Candidate as JSON, e.g. '{"timestamp":"2024-07-15T13:00:00Z","amount":4.5}'`)
	historyPath := fs.String("history", "", "History file (local path or gs://) instead of the configured backend")
	evaluate := fs.Bool("evaluate", false, "Run the reasoning model and store the assessment")
	explain := fs.Bool("explain", false, "Print the signals as text instead of JSON")
	fs.Parse(os.Args[2:])

	if *candidateJSON == "" {
		log.Fatal().Msg("Error: -candidate is required")
	}
	if *userID == "" && *historyPath == "" {
		log.Fatal().Msg("Error: -user or -history is required")
	}

	candidate, err := parseCandidate(*candidateJSON)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid candidate")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	var output interface{}
	var bundle *analytics.Bundle

	if *historyPath != "" {
		bundle, err = scoreFile(ctx, cfg, *historyPath, candidate)
		if err != nil {
			log.Fatal().Err(err).Msg("Scoring failed")
		}
		output = bundle
	} else {
		application, err := app.New(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize application")
		}
		defer application.Close()

		if *evaluate {
			state, err := application.Assessor.Assess(ctx, *userID, candidate)
			if err != nil {
				log.Fatal().Err(err).Msg("Assessment failed")
			}
			bundle = state.Bundle
			output = map[string]interface{}{
				"assessment_id": state.Assessment.AssessmentID,
				"bundle":        state.Bundle,
				"verdict":       state.Verdict,
				"stored":        state.Stored,
			}
		} else {
			bundle, err = application.Assessor.Signals(ctx, *userID, candidate)
			if err != nil {
				log.Fatal().Err(err).Msg("Scoring failed")
			}
			output = bundle
		}
	}

	if *explain {
		printExplanation(bundle)
		return
	}

	out, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode result")
	}
	fmt.Println(string(out))
}

// scoreFile scores the candidate against a single history file, bypassing
// the configured backend and cache.
func scoreFile(ctx context.Context, cfg *config.Config, location string, candidate analytics.RawRecord) (*analytics.Bundle, error) {
	var storage gcsuploader.StorageService
	if strings.HasPrefix(location, "gs://") {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			return nil, err
		}
		defer svc.Close()
		storage = svc
	}

	records, err := history.LoadFile(ctx, storage, location)
	if err != nil {
		return nil, err
	}

	engine := analytics.NewEngine(cfg.EngineConfig())
	ds, err := engine.BuildDataset(ctx, records)
	if err != nil {
		return nil, err
	}
	return engine.Score(ctx, ds, candidate)
}

func parseCandidate(s string) (analytics.RawRecord, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var candidate analytics.RawRecord
	if err := dec.Decode(&candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

func printExplanation(b *analytics.Bundle) {
	signals := b.Signals()
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\n=== Signals ===")
	for _, name := range names {
		s := signals[name]
		fmt.Printf("%-20s z=%-8s %s\n", name, s.ZScore, s.Stats)
	}
	fmt.Printf("%-20s flag=%-5t %s\n", "high_freq_low_volume", b.HighFreqLowVolume.Flag, b.HighFreqLowVolume.Stats)

	m := b.Metadata
	fmt.Println("\n=== Window ===")
	fmt.Printf("History rows:        %d\n", m.HistoryRows)
	fmt.Printf("Window rows:         %d\n", m.WindowRows)
	fmt.Printf("Typical daily count: %d\n", m.TypicalDailyCount)
	fmt.Printf("Week threshold:      %d\n", m.WeekThreshold)
	if m.InsufficientHistory {
		fmt.Println("Warning: history shorter than the requested window")
	}
	if m.CandidateTimestampDefaulted {
		fmt.Printf("Candidate timestamp defaulted to %s\n", m.CandidateTimestamp.Format(time.RFC3339))
	}
	fmt.Println()
}

func runImport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	userID := fs.String("user", "", "User the transactions belong to")
	file := fs.String("file", "", "History file (local path or gs://)")
	source := fs.String("source", "csv", "Source label stored with each transaction")
	fs.Parse(os.Args[2:])

	if *userID == "" || *file == "" {
		log.Fatal().Msg("Usage: cli import -user USER -file PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	var storage gcsuploader.StorageService
	if strings.HasPrefix(*file, "gs://") {
		svc, err := gcsuploader.NewGCSStorageService(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer svc.Close()
		storage = svc
	}

	records, err := history.LoadFile(ctx, storage, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read history file")
	}

	txs, err := history.ToTransactions(*userID, *source, records, cfg.EngineConfig().Location)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid history file")
	}

	switch {
	case application.Transactions != nil:
		err = application.Transactions.InsertTransactions(ctx, txs)
	case application.Firestore != nil:
		err = application.Firestore.AddDocuments(ctx, *userID, history.ToDocuments(txs))
	default:
		log.Fatal().Str("backend", cfg.HistoryBackend).Msg("Import needs a bigquery, sqlite or firestore history backend")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Imported %d transactions for %s into %s.\n", len(txs), *userID, cfg.HistoryBackend)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (or set GCS_BUCKET env)")
	userID := fs.String("user", "", "User the history belongs to; names the object <prefix>/<user>.<ext>")
	objectName := fs.String("object", "", "GCS object name (overrides -user)")
	filePath := fs.String("file", "", "Path to local history file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH [-user USER]")
	}
	if _, err := history.FormatFromName(*filePath); err != nil {
		log.Fatal().Err(err).Msg("Unsupported file")
	}

	if *objectName == "" {
		if *userID != "" {
			*objectName = gcsuploader.HistoryObjectName(cfg.GCSHistoryPrefix, *userID, filepath.Ext(*filePath))
		} else {
			*objectName = filepath.Base(*filePath)
		}
	}

	ctx := logger.WithContext(context.Background(), log)

	svc, err := gcsuploader.NewGCSStorageService(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create storage client")
	}
	defer svc.Close()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := svc.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to gs://%s/%s\n", *filePath, *bucketName, *objectName)
}

func runInitTables(cfg *config.Config, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if application.BigQuery == nil && application.SQLite == nil {
		log.Warn().Msg("No BigQuery or SQLite backend configured, nothing to create")
		return
	}

	if err := application.EnsureTables(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create tables")
	}

	fmt.Println("Tables are ready.")
}

func runAssessments(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("assessments", flag.ExitOnError)
	sinceStr := fs.String("since", "", "Only assessments created on or after this date (YYYY-MM-DD)")
	flaggedOnly := fs.Bool("flagged", false, "Only assessments flagged by the model or the velocity rule")
	fs.Parse(os.Args[2:])

	var since time.Time
	if *sinceStr != "" {
		var err error
		since, err = time.Parse("2006-01-02", *sinceStr)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: invalid -since format, expected YYYY-MM-DD")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if application.Assessments == nil {
		log.Fatal().Msg("ASSESSMENT_STORE is not configured")
	}

	assessments, err := application.Assessments.ListAssessmentsSince(ctx, since)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list assessments")
	}

	var shown int
	for _, a := range assessments {
		if *flaggedOnly && !a.Flagged() {
			continue
		}
		shown++
		fmt.Printf("\n%d. %s  %s\n", shown, a.AssessmentID, a.TransactionTS.Format(time.RFC3339))
		fmt.Printf("   User:     %s\n", a.UserID)
		fmt.Printf("   Amount:   %s at %s (%s)\n", a.Amount.StringFixed(2), a.Merchant, a.MerchantCategory)
		fmt.Printf("   Velocity: %t\n", a.VelocityFlag)
		if a.Anomaly != nil {
			fmt.Printf("   Verdict:  %s - %s\n", a.AnomalyType, a.Reason)
		}
	}
	fmt.Printf("\n%d of %d assessments shown.\n", shown, len(assessments))
}
