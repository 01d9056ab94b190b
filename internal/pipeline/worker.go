package pipeline

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"forgeworks/macrod/internal/cache"
	"forgeworks/macrod/internal/downstream"
)

type worker struct {
	expander   *Expander
	downstream *downstream.Client
	metrics    *Metrics
	maxPublish int
	log        *slog.Logger
}

// process runs one batch job to completion: expand every document, then
// publish the successful ones downstream when a client is configured.
func (w *worker) process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	log.Info("job started", "docs", len(job.Paths))

	job.SetStatus(StatusExpanding, "expanding documents")

	type expanded struct {
		path  string
		entry *cache.Entry
	}
	var ok []expanded

	for _, rel := range job.Paths {
		if ctx.Err() != nil {
			job.SetStatus(StatusFailed, "cancelled")
			return
		}
		entry, cached, err := w.expander.Expand(rel)
		if err != nil {
			log.Warn("expansion failed", "path", rel, "error", err)
			job.AddError(err.Error())
			job.AddResult(DocResult{Path: rel, OK: false, Error: err.Error()})
			continue
		}
		job.AddResult(DocResult{
			Path:    rel,
			OK:      true,
			Cached:  cached,
			Imports: len(entry.ImportPaths),
		})
		ok = append(ok, expanded{path: rel, entry: entry})
	}

	if w.downstream != nil && len(ok) > 0 {
		job.SetStatus(StatusPublishing, "publishing documents")
		sem := make(chan struct{}, w.maxPublish)
		var wg sync.WaitGroup
		for _, doc := range ok {
			wg.Add(1)
			sem <- struct{}{}
			go func(doc expanded) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := w.publish(ctx, doc.path, doc.entry); err != nil {
					log.Warn("publish failed", "path", doc.path, "error", err)
					job.AddError("publish " + doc.path + ": " + err.Error())
					return
				}
				w.metrics.ObservePublished()
				job.MarkPublished(doc.path)
			}(doc)
		}
		wg.Wait()
	}

	snap := job.Snapshot()
	var final JobStatus
	switch {
	case len(snap.Progress.Errors) == 0:
		final = StatusCompleted
		job.SetStatus(final, "done")
	case len(ok) == 0:
		final = StatusFailed
		job.SetStatus(final, "all documents failed")
	default:
		final = StatusPartial
		job.SetStatus(final, "done with errors")
	}
	log.Info("job finished", "status", final, "docs", len(job.Paths), "errors", len(snap.Progress.Errors))
}

// publish sends one expanded document downstream, retrying transient
// failures with exponential backoff.
func (w *worker) publish(ctx context.Context, rel string, entry *cache.Entry) error {
	name := documentName(rel)
	req := downstream.DocumentRequest{
		SourcePath:     rel,
		XML:            entry.XML,
		ImportPaths:    entry.ImportPaths,
		TemplateParams: entry.TemplateParams,
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		err = w.downstream.PublishDocument(ctx, name, req)
		if err == nil || !isRetryable(err) {
			return err
		}
		w.log.Debug("retrying publish", "path", rel, "attempt", attempt+1, "error", err)
	}
	return err
}

// documentName derives a downstream document name from a relative path.
func documentName(rel string) string {
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if name == "" {
		return rel
	}
	return name
}
