// Package logging manages the slog logger lifecycle. Commands start in
// bootstrap mode (text to stderr) before configuration is available, then
// upgrade to full mode: text to stderr plus JSON to a size-rotated log file.
package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager owns the process logger and its mode transitions. The logger
// returned by Logger is stable across Upgrade calls.
type Manager struct {
	handler *swappableHandler
	logger  *slog.Logger
	sink    *lumberjack.Logger
	level   *slog.LevelVar
}

// NewManager creates a logging manager in bootstrap mode (stderr text only).
// Call Upgrade once configuration is loaded.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)

	opts := &slog.HandlerOptions{Level: level}
	handler := newSwappableHandler(slog.NewTextHandler(os.Stderr, opts))

	return &Manager{
		handler: handler,
		logger:  slog.New(handler),
		level:   level,
	}
}

// Logger returns the process logger.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade switches to full mode: text to stderr plus JSON to the given file,
// rotated by size so long-running imports cannot fill the disk.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) error {
	m.sink = &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		Compress:   true,
	}
	m.level.Set(level)

	opts := &slog.HandlerOptions{Level: m.level}
	m.handler.swap(slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		slog.NewJSONHandler(m.sink, opts),
	))
	return nil
}

// SetLevel changes the log level at runtime.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close releases the file sink, if any.
func (m *Manager) Close() error {
	if m.sink != nil {
		return m.sink.Close()
	}
	return nil
}
