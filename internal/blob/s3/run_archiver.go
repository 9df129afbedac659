package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/edgescout/edgescout/internal/domain"
)

// ReportRenderer produces the human-readable report stored next to the raw
// run record.
type ReportRenderer interface {
	Render(run domain.RunRecord) string
}

// RunArchiver uploads each sealed run twice: the full record as JSON for
// machine consumption and the rendered markdown report for humans. Keys are
// partitioned by the month the run started in.
type RunArchiver struct {
	writer   *Writer
	renderer ReportRenderer
}

var _ domain.RunArchiver = (*RunArchiver)(nil)

func NewRunArchiver(writer *Writer, renderer ReportRenderer) *RunArchiver {
	return &RunArchiver{writer: writer, renderer: renderer}
}

// ArchiveRun uploads the record and its report. The record upload must
// succeed before the report is attempted; a failed report upload is returned
// but the JSON record is already durable at that point.
func (a *RunArchiver) ArchiveRun(ctx context.Context, run domain.RunRecord) error {
	raw, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal run %s: %w", run.ID, err)
	}

	if err := a.writer.Put(ctx, RecordKey(run.ID, run.StartedAt), bytes.NewReader(raw), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive run %s: %w", run.ID, err)
	}

	report := a.renderer.Render(run)
	if err := a.writer.Put(ctx, ReportKey(run.ID), strings.NewReader(report), "text/markdown"); err != nil {
		return fmt.Errorf("s3blob: archive report %s: %w", run.ID, err)
	}
	return nil
}

// RecordKey is the object key for the raw JSON record of a run, partitioned
// by the month the run started in.
func RecordKey(runID string, startedAt time.Time) string {
	return fmt.Sprintf("runs/%s/%s.json", startedAt.UTC().Format("2006/01"), runID)
}

// ReportKey is the object key for the rendered markdown report. Derivable
// from the run ID alone so the status server can fetch reports without
// knowing when the run happened.
func ReportKey(runID string) string {
	return fmt.Sprintf("reports/%s.md", runID)
}
