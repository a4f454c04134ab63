package runner

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/JYU-DI/timsync/internal/output"
	"github.com/JYU-DI/timsync/internal/pipeline"
	"github.com/JYU-DI/timsync/internal/store"
)

// SyncFunc performs one synchronization, usually pipeline.Pipeline.Run.
type SyncFunc func(ctx context.Context) (*pipeline.Report, error)

// Recorder persists finished runs. *store.Store implements it.
type Recorder interface {
	RecordRun(run store.Run, docs []store.RunDocument) (string, error)
}

// SyncRunner executes a sync, journals it and collects a RunResult.
type SyncRunner struct {
	sync     SyncFunc
	recorder Recorder
	now      func() time.Time
}

// NewSyncRunner creates a SyncRunner. recorder may be nil.
func NewSyncRunner(sync SyncFunc, recorder Recorder) *SyncRunner {
	return &SyncRunner{sync: sync, recorder: recorder, now: time.Now}
}

// Run executes the sync for target. A failed sync is reported through
// RunResult.Error together with the original error; a journal failure is
// only logged.
func (r *SyncRunner) Run(ctx context.Context, target string) (*output.RunResult, error) {
	start := r.now()
	report, err := r.sync(ctx)

	result := &output.RunResult{Target: target, Report: report}
	run := store.Run{Target: target, StartedAt: start, FinishedAt: r.now(), Status: store.StatusOK}
	if err != nil {
		result.Report = nil
		result.Error = err.Error()
		run.Status = store.StatusFailed
		run.Error = err.Error()
	}

	if r.recorder != nil {
		var docs []store.RunDocument
		if result.Report != nil {
			for _, d := range result.Report.Documents {
				docs = append(docs, store.RunDocument{Path: d.Path, RemoteID: d.RemoteID, Action: string(d.Action)})
			}
		}
		if _, rerr := r.recorder.RecordRun(run, docs); rerr != nil {
			log.WithError(rerr).Warn("could not record sync run in history")
		}
	}
	return result, err
}
