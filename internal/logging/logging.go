// Package logging holds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Logger is shared by every package. It discards output until Initialize
// enables debug logging.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// logFile is the file Logger currently writes to, if any.
var logFile *os.File

func setOutput(l *slog.Logger, f *os.File) {
	prev := logFile
	Logger, logFile = l, f
	if prev != nil && prev != f {
		prev.Close()
	}
}

// Initialize configures Logger. With debug off and no file, logs are
// discarded. With a file, logs append to it. Otherwise each run gets a
// uuid-named file in logDir, keeping at most maxFiles of them. A file
// opened by an earlier call is closed.
func Initialize(debug bool, file, logDir string, maxFiles int) (string, error) {
	if os.Getenv("PILLARS_DEBUG") == "1" {
		debug = true
	}
	if env := os.Getenv("PILLARS_DEBUG_FILE"); env != "" && file == "" {
		file = env
	}
	if env := os.Getenv("PILLARS_MAX_LOG_FILES"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			maxFiles = n
		}
	}

	if !debug && file == "" {
		setOutput(slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
		return "", nil
	}

	path := file
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
	} else {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
		if maxFiles > 0 {
			if err := rotate(logDir, maxFiles); err != nil {
				fmt.Fprintf(os.Stderr, "warning: log rotation failed: %v\n", err)
			}
		}
		path = filepath.Join(logDir, uuid.NewString()+".log")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	setOutput(slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), f)
	Logger.Info("debug logging initialized", "log_file", path)
	return path, nil
}

// rotate deletes the oldest .log files so that one more fits under maxFiles.
func rotate(dir string, maxFiles int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	var files []logFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	if len(files) < maxFiles {
		return nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})
	for i := 0; i < len(files)-maxFiles+1; i++ {
		if err := os.Remove(files[i].path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: remove old log file %s: %v\n", files[i].path, err)
		}
	}
	return nil
}
