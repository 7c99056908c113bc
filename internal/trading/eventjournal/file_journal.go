package eventjournal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Handler receives each decoded event during replay. Returning false stops
// the replay; a non-nil error with false aborts it.
type Handler func(*Event) (bool, error)

// ReplayStats summarizes a replay run.
type ReplayStats struct {
	Events  int
	Skipped int
}

// FileJournal appends events to a JSON-lines file.
type FileJournal struct {
	logger   *zap.Logger
	filePath string
	file     *os.File
	mu       sync.Mutex
}

// NewFileJournal creates or opens the journal at path for appending.
func NewFileJournal(path string, logger *zap.Logger) (*FileJournal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	logger.Info("Event journal initialized", zap.String("file_path", path))
	return &FileJournal{logger: logger, filePath: path, file: f}, nil
}

// Path returns the journal file path.
func (j *FileJournal) Path() string { return j.filePath }

// Append writes one event and syncs it to disk.
func (j *FileJournal) Append(ctx context.Context, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return fmt.Errorf("journal %s is closed", j.filePath)
	}
	if _, err := j.file.Write(data); err != nil {
		j.logger.Error("Failed to write event to journal", zap.Error(err))
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		j.logger.Error("Failed to sync journal to disk", zap.Error(err))
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Close syncs and closes the journal file.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	if err := j.file.Sync(); err != nil {
		j.logger.Error("Failed to sync journal before close", zap.Error(err))
	}
	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("failed to close journal file: %w", err)
	}
	j.logger.Info("Event journal closed")
	return nil
}

// ReplayFile replays the events stored at path. A missing file replays
// nothing.
func ReplayFile(ctx context.Context, path string, logger *zap.Logger, handler Handler) (ReplayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ReplayStats{}, nil
		}
		return ReplayStats{}, fmt.Errorf("failed to open journal file for replay: %w", err)
	}
	defer f.Close()
	return Replay(ctx, f, logger, handler)
}

// Replay decodes JSON-lines events from r in order and hands them to
// handler. Undecodable or invalid lines are logged and skipped.
func Replay(ctx context.Context, r io.Reader, logger *zap.Logger, handler Handler) (ReplayStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats ReplayStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			logger.Warn("Replay cancelled by context")
			return stats, err
		}
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event Event
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			stats.Skipped++
			logger.Error("Failed to unmarshal event during replay",
				zap.Error(err),
				zap.Int("line", lineNo),
				zap.String("data", line[:min(100, len(line))]))
			continue
		}
		if err := event.Validate(); err != nil {
			stats.Skipped++
			logger.Error("Skipping invalid event during replay", zap.Error(err), zap.Int("line", lineNo))
			continue
		}

		stats.Events++
		cont, err := handler(&event)
		if err != nil {
			logger.Error("Handler error during replay",
				zap.Error(err),
				zap.String("eventType", event.Type),
				zap.Int("line", lineNo))
			if !cont {
				return stats, fmt.Errorf("replay stopped at line %d: %w", lineNo, err)
			}
		}
		if !cont {
			logger.Info("Replay stopped by handler", zap.Int("eventCount", stats.Events))
			break
		}
		if stats.Events%1000 == 0 {
			logger.Info("Replay progress", zap.Int("eventsProcessed", stats.Events))
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("error reading journal during replay: %w", err)
	}

	logger.Info("Event replay completed",
		zap.Int("totalEvents", stats.Events),
		zap.Int("skipped", stats.Skipped))
	return stats, nil
}
