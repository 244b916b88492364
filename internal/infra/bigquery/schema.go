package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/spend-signals/internal/logger"
)

type tableSpec struct {
	name           string
	row            interface{}
	partitionField string
}

var tableSpecs = []tableSpec{
	{name: transactionsTable, row: TransactionRow{}, partitionField: "transaction_date"},
	{name: assessmentsTable, row: AssessmentRow{}, partitionField: "created_ts"},
}

// EnsureTables creates the dataset tables that do not exist yet, with
// schemas inferred from the row types.
func (r *Repository) EnsureTables(ctx context.Context) error {
	log := logger.FromContext(ctx)
	ds := r.client.DatasetInProject(r.projectID, r.datasetID)

	for _, spec := range tableSpecs {
		table := ds.Table(spec.name)
		_, err := table.Metadata(ctx)
		if err == nil {
			log.Debug().Str("table", spec.name).Msg("Table exists")
			continue
		}
		if !isNotFound(err) {
			return fmt.Errorf("EnsureTables: reading %s metadata: %w", spec.name, err)
		}

		schema, err := bigquery.InferSchema(spec.row)
		if err != nil {
			return fmt.Errorf("EnsureTables: inferring %s schema: %w", spec.name, err)
		}

		meta := &bigquery.TableMetadata{
			Schema:           schema,
			TimePartitioning: &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: spec.partitionField},
			Clustering:       &bigquery.Clustering{Fields: []string{"user_id"}},
		}
		if err := table.Create(ctx, meta); err != nil {
			return fmt.Errorf("EnsureTables: creating %s: %w", spec.name, err)
		}
		log.Info().Str("table", spec.name).Msg("Created table")
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
