// Package export streams persisted simulation runs into downloadable
// evaluation formats.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
	"github.com/sweetpotato0/mountdoom/simulation"
	"github.com/sweetpotato0/mountdoom/store"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSONL, FormatCSV:
		return Format(s), nil
	case "":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", mderrors.ErrInvalidInput, s)
	}
}

// Exporter pages runs out of the document store and serializes them.
type Exporter struct {
	store      store.DocumentStore
	collection string
	pageSize   int
}

// NewExporter creates an exporter over the given collection.
func NewExporter(ds store.DocumentStore, collection string) *Exporter {
	if collection == "" {
		collection = simulation.DefaultCollection
	}
	return &Exporter{
		store:      ds,
		collection: collection,
		pageSize:   100,
	}
}

// Write streams all runs to w in the requested format, oldest first.
func (e *Exporter) Write(ctx context.Context, w io.Writer, format Format) error {
	switch format {
	case FormatJSONL:
		return e.eachRun(ctx, func(run *simulation.SimulationRun) error {
			return json.NewEncoder(w).Encode(run)
		})
	case FormatCSV:
		return e.writeCSV(ctx, w)
	default:
		return fmt.Errorf("%w: unknown export format %q", mderrors.ErrInvalidInput, format)
	}
}

func (e *Exporter) writeCSV(ctx context.Context, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{
		"conversation_id", "status", "turns", "total_tokens_used",
		"customer_intent", "customer_sentiment", "conversation_subject",
		"start_time", "end_time",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	err := e.eachRun(ctx, func(run *simulation.SimulationRun) error {
		return cw.Write([]string{
			run.ConversationID,
			string(run.Status),
			strconv.Itoa(len(run.Turns)),
			strconv.Itoa(run.TotalTokensUsed),
			run.Properties.CustomerIntent,
			run.Properties.CustomerSentiment,
			run.Properties.ConversationSubject,
			run.StartTime.Format(time.RFC3339),
			run.EndTime.Format(time.RFC3339),
		})
	})
	if err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

func (e *Exporter) eachRun(ctx context.Context, fn func(*simulation.SimulationRun) error) error {
	offset := 0
	for {
		var page []simulation.SimulationRun
		opts := store.PageOptions{OrderBy: "created_at", Offset: offset, Limit: e.pageSize}
		if err := e.store.Page(ctx, e.collection, opts, &page); err != nil {
			return fmt.Errorf("failed to page runs: %w", err)
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			if err := fn(&page[i]); err != nil {
				return fmt.Errorf("failed to export run: %w", err)
			}
		}
		if len(page) < e.pageSize {
			return nil
		}
		offset += e.pageSize
	}
}
