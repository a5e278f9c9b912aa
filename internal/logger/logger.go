// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logger provides leveled logging (info / warning / error) to the
// console and, optionally, to one file per level.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Level names a log level. It doubles as the base name of the level's file.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Logger writes formatted entries at three levels. It is safe for
// concurrent use.
type Logger struct {
	mu         sync.Mutex
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      []*os.File
}

// New returns a Logger writing info and warning entries to out and error
// entries to errOut.
func New(out, errOut io.Writer) *Logger {
	return newLogger(out, out, errOut)
}

// NewWithDir is like New but also appends each level to dir/<level>.log.
// The directory is created if it does not exist.
func NewWithDir(out, errOut io.Writer, dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	var files []*os.File
	open := func(level Level) (io.Writer, error) {
		path := filepath.Join(dir, string(level)+".log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", path, err)
		}
		files = append(files, f)
		return f, nil
	}
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	infoFile, err := open(LevelInfo)
	if err != nil {
		return nil, err
	}
	warningFile, err := open(LevelWarning)
	if err != nil {
		closeAll()
		return nil, err
	}
	errorFile, err := open(LevelError)
	if err != nil {
		closeAll()
		return nil, err
	}

	l := newLogger(
		io.MultiWriter(out, infoFile),
		io.MultiWriter(out, warningFile),
		io.MultiWriter(errOut, errorFile),
	)
	l.files = files
	return l, nil
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	return New(io.Discard, io.Discard)
}

func newLogger(info, warning, errW io.Writer) *Logger {
	const flags = log.Ldate | log.Ltime
	return &Logger{
		infoLog:    log.New(info, "INFO    ", flags),
		warningLog: log.New(warning, "WARNING ", flags),
		errorLog:   log.New(errW, "ERROR   ", flags),
	}
}

// Info writes a formatted info-level entry.
func (l *Logger) Info(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level entry.
func (l *Logger) Warning(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level entry.
func (l *Logger) Error(format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// Close closes the per-level files opened by NewWithDir.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
