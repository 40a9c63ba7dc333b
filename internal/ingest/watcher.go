package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/sajaddeen/readai-task-automation/internal/logging"
	"github.com/sajaddeen/readai-task-automation/internal/pipeline"
)

// Sink receives meetings pulled out of the drop directory.
type Sink interface {
	Ingest(ctx context.Context, m pipeline.Meeting) (string, error)
}

// processedSuffix marks files the watcher has already consumed.
const processedSuffix = ".done"

// Watcher feeds transcript files dropped into a local directory through
// the pipeline. Two formats are accepted: a .json file with the webhook
// payload shape, and a .txt file holding a raw transcript whose meeting
// title is the file name.
//
// Consumed files are renamed with a .done suffix so a restart never
// replays them.
type Watcher struct {
	dir    string
	sink   Sink
	logger *logging.Logger
}

// NewWatcher validates the drop directory and returns a watcher for it.
func NewWatcher(dir string, sink Sink, logger *logging.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("drop directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("drop directory %s is not a directory", dir)
	}
	return &Watcher{
		dir:    dir,
		sink:   sink,
		logger: logger.Named("ingest.watcher"),
	}, nil
}

// Run watches the drop directory until ctx is cancelled. Files already in
// the directory at startup are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.process(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", zap.Error(err))
		}
	}
}

// sweep processes files that were already present before watching began.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn(ctx, "failed to list drop directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

// process ingests one dropped file. Failures are logged and the file is
// left in place so a fix (or a later write completing the file) can retry.
func (w *Watcher) process(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasSuffix(name, processedSuffix) {
		return
	}

	meeting, ok, err := readMeetingFile(path)
	if err != nil {
		w.logger.Warn(ctx, "skipping unreadable drop file",
			zap.String("file", name), zap.Error(err))
		return
	}
	if !ok {
		return
	}

	sessionID, err := w.sink.Ingest(ctx, meeting)
	if err != nil {
		w.logger.Error(ctx, "drop file ingest failed",
			zap.String("file", name), zap.Error(err))
		return
	}

	if err := os.Rename(path, path+processedSuffix); err != nil {
		w.logger.Warn(ctx, "failed to mark drop file processed",
			zap.String("file", name), zap.Error(err))
	}
	w.logger.Info(ctx, "drop file ingested",
		zap.String("file", name),
		zap.String("session.id", sessionID))
}

// readMeetingFile loads a drop file into a meeting. ok is false for file
// types the watcher does not handle.
func readMeetingFile(path string) (pipeline.Meeting, bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		f, err := os.Open(path)
		if err != nil {
			return pipeline.Meeting{}, false, err
		}
		defer f.Close()
		m, err := ParseWebhook(f)
		if err != nil {
			return pipeline.Meeting{}, false, err
		}
		return m, true, nil
	case ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Meeting{}, false, err
		}
		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return pipeline.Meeting{Title: title, Transcript: string(data)}, true, nil
	default:
		return pipeline.Meeting{}, false, nil
	}
}
