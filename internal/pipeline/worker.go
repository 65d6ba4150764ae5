package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/doctree"
	"github.com/dgallion1/docqa/internal/export"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/session"
)

// Worker processes a single document job.
type Worker struct {
	sessions  *session.Store
	log       *slog.Logger
	parseOpts parser.Options
	exportDir string
}

func NewWorker(sessions *session.Store, log *slog.Logger, parseOpts parser.Options, exportDir string) *Worker {
	return &Worker{
		sessions:  sessions,
		log:       log,
		parseOpts: parseOpts,
		exportDir: exportDir,
	}
}

// Process runs the full ingest pipeline for a job: parse, chunk, publish
// the chunks to the session (rebuilding its index), then export.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "session_id", job.SessionID, "filename", job.Filename)
	start := time.Now()

	sess, err := w.sessions.Get(job.SessionID)
	if err != nil {
		w.fail(log, job, "session", err)
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	data := job.FileData()
	doc, err := parser.Parse(bytes.NewReader(data), job.Filename, w.parseOpts)
	if err != nil {
		w.fail(log, job, "parsing", err)
		return
	}
	hash := ContentHashHex([]byte(dedupKey(doc, job.Chunking)))
	job.SetParsed(doc.Pages, hash)

	if sess.ContentHash() == hash {
		log.Info("document already current in session, skipping")
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks, err := chunker.Process(doc, job.Chunking)
	if err != nil {
		w.fail(log, job, "chunking", err)
		return
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks), "strategy", job.Chunking.Strategy)

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
		return
	}

	// Phase 3: Index and publish
	job.SetStatus(StatusIndexing, "indexing")
	info := session.FileInfo{
		Name:        job.Filename,
		Kind:        parser.DetectKind(job.Filename),
		Size:        int64(len(data)),
		Pages:       doc.Pages,
		ContentHash: hash,
		UploadedAt:  job.CreatedAt,
	}
	if w.exportDir != "" {
		info.ExportPath = export.PathFor(w.exportDir, job.Filename)
	}
	if err := sess.Publish(ctx, info, chunks); err != nil {
		w.fail(log, job, "indexing", err)
		return
	}
	if sess.CanIndex() {
		job.SetIndexed()
	}

	// Phase 4: Export. A failed export does not undo the publish.
	if info.ExportPath != "" {
		if err := export.Save(info.ExportPath, chunks); err != nil {
			log.Error("chunk export failed", "path", info.ExportPath, "error", err)
			job.AddError(fmt.Sprintf("export: %s", err))
		} else {
			job.SetExportPath(info.ExportPath)
		}
	}

	log.Info("ingestion complete", "chunks", len(chunks), "duration_ms", time.Since(start).Milliseconds())
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) fail(log *slog.Logger, job *Job, phase string, err error) {
	log.Error(phase+" failed", "error", err)
	job.AddError(fmt.Sprintf("%s: %s", phase, err))
	job.SetStatus(StatusFailed, phase)
}

// dedupKey combines the parsed text with the chunk settings, so the same
// document chunked differently is processed again.
func dedupKey(doc *doctree.Document, cfg chunker.Config) string {
	return fmt.Sprintf("%s|%d|%d\n%s", cfg.Strategy, cfg.ChunkSize, cfg.Overlap, doc.BodyText("\n"))
}
