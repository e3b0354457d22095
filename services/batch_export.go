package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Batch limits.
const (
	MaxBatchSize        = 50
	DefaultBatchWorkers = 2
	MaxBatchWorkers     = 4
)

// ManifestName is the last entry of every batch archive.
const ManifestName = "manifest.txt"

// BatchRequest asks for many quotations in one format with shared settings.
type BatchRequest struct {
	IDs      []string       `json:"ids"`
	Format   string         `json:"format"`
	Settings map[string]any `json:"settings"`
	OwnerID  string         `json:"-"`
}

// Validate checks the request shape.
func (r BatchRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs,
			validation.Required.Error("at least one quotation id is required"),
			validation.Length(0, MaxBatchSize).Error(fmt.Sprintf("at most %d quotations per batch (got %d)", MaxBatchSize, len(r.IDs))),
			validation.Each(validation.Required),
		),
		validation.Field(&r.Format, validation.Required),
	)
}

// BatchItemResult is the outcome for one quotation.
type BatchItemResult struct {
	QuotationID string `json:"quotationId"`
	Filename    string `json:"filename"` // archive entry, artifact or error report
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

// BatchProgress is a snapshot of a running batch.
type BatchProgress struct {
	JobID     string `json:"jobId"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Current   string `json:"current"` // last quotation written
}

// BatchReport is the final state of a batch.
type BatchReport struct {
	JobID    string            `json:"jobId"`
	Format   string            `json:"format"`
	Items    []BatchItemResult `json:"items"`
	Progress BatchProgress     `json:"progress"`
	Warnings []string          `json:"warnings"`
}

// Succeeded returns the number of artifacts in the archive.
func (r *BatchReport) Succeeded() int { return r.Progress.Succeeded }

// Failed returns the number of error reports in the archive.
func (r *BatchReport) Failed() int { return r.Progress.Failed }

// BatchExporter streams many exports into one zip archive.
type BatchExporter struct {
	exporter *Exporter
	workers  int
}

// NewBatchExporter returns a batch exporter running at most workers renders
// at a time.
func NewBatchExporter(e *Exporter, workers int) *BatchExporter {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	if workers > MaxBatchWorkers {
		workers = MaxBatchWorkers
	}
	return &BatchExporter{exporter: e, workers: workers}
}

type batchOutcome struct {
	id       string
	artifact *ExportArtifact
	err      error
}

// Run validates req, then writes one archive entry per id to w in request
// order, followed by the manifest. A failing id becomes ERROR-{id}.txt and
// never stops the batch. At most workers artifacts are held in memory.
// onProgress, when set, is called after every entry from Run's goroutine.
func (b *BatchExporter) Run(ctx context.Context, w io.Writer, req BatchRequest, onProgress func(BatchProgress)) (*BatchReport, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}
	format, s, warnings, err := b.exporter.Prepare(ExportRequest{
		Format:   req.Format,
		Settings: req.Settings,
		OwnerID:  req.OwnerID,
	})
	if err != nil {
		return nil, err
	}

	report := &BatchReport{
		JobID:    uuid.NewString(),
		Format:   format,
		Items:    make([]BatchItemResult, 0, len(req.IDs)),
		Warnings: warnings,
	}
	report.Progress = BatchProgress{JobID: report.JobID, Total: len(req.IDs)}
	log.Printf("batch_export: %s started, %d x %s, %d workers", report.JobID, len(req.IDs), format, b.workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]chan batchOutcome, len(req.IDs))
	for i := range slots {
		slots[i] = make(chan batchOutcome, 1)
	}

	sem := semaphore.NewWeighted(int64(b.workers))
	var g errgroup.Group
	started := make(chan int, len(req.IDs))
	g.Go(func() error {
		defer close(started)
		for i, id := range req.IDs {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil
			}
			started <- i
			g.Go(func() error {
				artifact, _, _, err := b.exporter.produce(ctx, id, format, s)
				slots[i] <- batchOutcome{id: id, artifact: artifact, err: err}
				return nil
			})
		}
		return nil
	})

	zw := zip.NewWriter(w)
	names := make(map[string]int)
	record := func(out batchOutcome) error {
		item := BatchItemResult{QuotationID: out.id, OK: out.err == nil}
		var err error
		if out.err == nil {
			item.Filename = uniqueName(names, out.artifact.Filename)
			err = writeEntry(zw, item.Filename, out.artifact.Data, storedFormat(format))
			report.Progress.Succeeded++
		} else {
			log.Printf("batch_export: %s: %v", out.id, out.err)
			item.Error = out.err.Error()
			item.Filename = uniqueName(names, "ERROR-"+safeEntryName(out.id)+".txt")
			err = writeEntry(zw, item.Filename, errorReport(out.id, format, out.err), false)
			report.Progress.Failed++
		}
		report.Items = append(report.Items, item)
		report.Progress.Completed++
		report.Progress.Current = out.id
		if onProgress != nil {
			onProgress(report.Progress)
		}
		return err
	}

	var writeErr error
	for i := range started {
		writeErr = record(<-slots[i])
		sem.Release(1)
		if writeErr != nil {
			cancel()
			break
		}
	}
	_ = g.Wait()

	// Ids the producer never reached still get an entry.
	if writeErr == nil && len(report.Items) < len(req.IDs) {
		reason := ctx.Err()
		if reason == nil {
			reason = context.Canceled
		}
		log.Printf("batch_export: %s stopped after %d of %d: %v", report.JobID, len(report.Items), len(req.IDs), reason)
		for _, id := range req.IDs[len(report.Items):] {
			if writeErr = record(batchOutcome{id: id, err: fmt.Errorf("not started: %w", reason)}); writeErr != nil {
				break
			}
		}
	}

	if writeErr == nil {
		writeErr = writeEntry(zw, ManifestName, manifest(report), false)
	}
	if writeErr == nil {
		writeErr = zw.Close()
	}
	if writeErr != nil {
		return report, fmt.Errorf("write archive: %w", writeErr)
	}
	log.Printf("batch_export: %s done, %d succeeded, %d failed", report.JobID, report.Succeeded(), report.Failed())
	return report, nil
}

// storedFormat reports whether artifacts of format are already compressed.
func storedFormat(format string) bool {
	return format != FormatPDF
}

func writeEntry(zw *zip.Writer, name string, data []byte, store bool) error {
	method := zip.Deflate
	if store {
		method = zip.Store
	}
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method, Modified: time.Now()})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	log.Printf("batch_export: added %s (%s)", name, humanize.Bytes(uint64(len(data))))
	return nil
}

// uniqueName suffixes repeated archive names: a.pdf, a-2.pdf, a-3.pdf.
func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	n := seen[name]
	if n == 1 {
		return name
	}
	ext := path.Ext(name)
	candidate := fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
	if _, taken := seen[candidate]; taken {
		return uniqueName(seen, candidate)
	}
	seen[candidate] = 1
	return candidate
}

func safeEntryName(id string) string {
	return strings.Map(func(r rune) rune {
		if isASCIIAlnum(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, id)
}

func errorReport(id, format string, err error) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Quotation: %s\n", id)
	fmt.Fprintf(&b, "Format: %s\n", format)
	if ee, ok := asExportError(err); ok && ee.Stage != "" {
		fmt.Fprintf(&b, "Stage: %s\n", ee.Stage)
	}
	if IsRetryable(err) {
		b.WriteString("Retryable: yes\n")
	}
	fmt.Fprintf(&b, "Error: %v\n", err)
	return []byte(b.String())
}

func manifest(r *BatchReport) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch export %s\n", r.JobID)
	fmt.Fprintf(&b, "Format: %s\n", r.Format)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%d succeeded, %d failed\n\n", r.Succeeded(), r.Failed())
	for _, it := range r.Items {
		if it.OK {
			fmt.Fprintf(&b, "OK      %s  %s\n", it.QuotationID, it.Filename)
		} else {
			fmt.Fprintf(&b, "FAILED  %s  %s\n", it.QuotationID, it.Error)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	return []byte(b.String())
}
