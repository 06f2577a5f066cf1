// Package logging writes structured log lines for the clocks, the lifecycle
// machinery and the simulation driving them.
package logging

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Config configures a Logger.
type Config struct {
	TraderID   string
	MachineID  string
	InstanceID uuid.UUID

	LevelStdout Level
	LevelFile   Level

	// Stdout receives console output. Defaults to os.Stdout.
	Stdout io.Writer
	Colors bool

	FileLogging bool
	Directory   string
	FileName    string
	// FileFormat is either "json" or "plain".
	FileFormat string

	// ComponentLevels overrides the minimum level for individual
	// components on every sink.
	ComponentLevels map[string]Level

	// Bypass suppresses all output.
	Bypass bool
}

// DefaultConfig returns a config that prints INFO and above to stdout.
func DefaultConfig() Config {
	return Config{
		TraderID:    "TRADER-000",
		MachineID:   hostname(),
		LevelStdout: Info,
		LevelFile:   Debug,
		FileFormat:  "json",
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// Logger fans log lines out to a console sink and an optional file sink.
type Logger struct {
	mu sync.Mutex

	traderID   string
	machineID  string
	instanceID uuid.UUID
	bypass     bool
	colors     bool

	stdout      zerolog.Logger
	levelStdout Level

	file        *os.File
	fileSink    zerolog.Logger
	levelFile   Level
	fileEnabled bool

	componentLevels map[string]Level
}

// New creates a Logger from cfg. When file logging is enabled the log file is
// created immediately.
func New(cfg Config) (*Logger, error) {
	if cfg.InstanceID == uuid.Nil {
		cfg.InstanceID = uuid.New()
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	l := &Logger{
		traderID:        cfg.TraderID,
		machineID:       cfg.MachineID,
		instanceID:      cfg.InstanceID,
		bypass:          cfg.Bypass,
		colors:          cfg.Colors,
		levelStdout:     cfg.LevelStdout,
		levelFile:       cfg.LevelFile,
		componentLevels: make(map[string]Level, len(cfg.ComponentLevels)),
	}
	for comp, level := range cfg.ComponentLevels {
		l.componentLevels[comp] = level
	}

	l.stdout = zerolog.New(zerolog.ConsoleWriter{
		Out:        cfg.Stdout,
		NoColor:    !cfg.Colors,
		TimeFormat: time.RFC3339Nano,
	}).With().Str("trader_id", cfg.TraderID).Logger()

	if cfg.FileLogging && !cfg.Bypass {
		if err := l.openFile(cfg); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Nop returns a Logger that drops everything.
func Nop() *Logger {
	l, _ := New(Config{Bypass: true, Stdout: io.Discard})
	return l
}

func (l *Logger) openFile(cfg Config) error {
	ext := "log"
	if cfg.FileFormat == "json" {
		ext = "json"
	}

	name := cfg.FileName
	if name == "" {
		name = fmt.Sprintf("%s_%s.%s", cfg.TraderID, cfg.InstanceID, ext)
	}

	dir := cfg.Directory
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("logging: create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Join(dir, name),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open log file: %w", err)
	}

	var w io.Writer = f
	if cfg.FileFormat != "json" {
		w = zerolog.ConsoleWriter{
			Out:        f,
			NoColor:    true,
			TimeFormat: time.RFC3339Nano,
		}
	}

	l.file = f
	l.fileEnabled = true
	l.fileSink = zerolog.New(w).With().
		Str("trader_id", cfg.TraderID).
		Str("machine_id", cfg.MachineID).
		Str("instance_id", cfg.InstanceID.String()).
		Logger()

	return nil
}

// TraderID returns the trader the logger belongs to.
func (l *Logger) TraderID() string { return l.traderID }

// MachineID returns the machine the logger runs on.
func (l *Logger) MachineID() string { return l.machineID }

// InstanceID returns the unique id of this logger instance.
func (l *Logger) InstanceID() uuid.UUID { return l.instanceID }

// IsBypassed tells whether the logger drops all output.
func (l *Logger) IsBypassed() bool { return l.bypass }

// Log writes one line stamped with the nanosecond timestamp tsNs.
func (l *Logger) Log(
	tsNs uint64,
	level Level,
	color Color,
	component string,
	msg string,
) {
	if l == nil || l.bypass {
		return
	}

	minStdout, minFile := l.levelStdout, l.levelFile
	if override, ok := l.componentLevels[component]; ok {
		minStdout, minFile = override, override
	}

	ts := logTime(tsNs)

	l.mu.Lock()
	defer l.mu.Unlock()

	if level >= minStdout {
		text := msg
		if l.colors && color != Normal {
			text = color.ansi() + msg + "\x1b[0m"
		}

		l.stdout.WithLevel(level.zerologLevel()).
			Time(zerolog.TimestampFieldName, ts).
			Uint64("ts_ns", tsNs).
			Str("component", component).
			Msg(text)
	}

	if l.fileEnabled && level >= minFile {
		l.fileSink.WithLevel(level.zerologLevel()).
			Time(zerolog.TimestampFieldName, ts).
			Uint64("ts_ns", tsNs).
			Str("component", component).
			Str("color", color.String()).
			Msg(msg)
	}
}

// logTime converts tsNs to a wall time. Instants past the int64 range are
// pinned to its last nanosecond; the exact value is kept in ts_ns.
func logTime(tsNs uint64) time.Time {
	if tsNs > math.MaxInt64 {
		tsNs = math.MaxInt64
	}

	return time.Unix(0, int64(tsNs)).UTC()
}

// Component returns a logger bound to a component name.
func (l *Logger) Component(name string) ComponentLogger {
	return ComponentLogger{logger: l, name: name}
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.fileEnabled {
		return nil
	}

	l.fileEnabled = false
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("logging: sync log file: %w", err)
	}

	return l.file.Close()
}

func (level Level) zerologLevel() zerolog.Level {
	switch {
	case level >= Critical:
		return zerolog.FatalLevel
	case level >= Error:
		return zerolog.ErrorLevel
	case level >= Warning:
		return zerolog.WarnLevel
	case level >= Info:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// ComponentLogger logs on behalf of a single component.
type ComponentLogger struct {
	logger *Logger
	name   string
}

// Name returns the component name.
func (c ComponentLogger) Name() string { return c.name }

// Debug logs at DEBUG.
func (c ComponentLogger) Debug(tsNs uint64, msg string) {
	c.logger.Log(tsNs, Debug, Normal, c.name, msg)
}

// Info logs at INFO with the given color.
func (c ComponentLogger) Info(tsNs uint64, msg string, color Color) {
	c.logger.Log(tsNs, Info, color, c.name, msg)
}

// Warning logs at WARNING.
func (c ComponentLogger) Warning(tsNs uint64, msg string) {
	c.logger.Log(tsNs, Warning, Yellow, c.name, msg)
}

// Error logs at ERROR.
func (c ComponentLogger) Error(tsNs uint64, msg string) {
	c.logger.Log(tsNs, Error, Red, c.name, msg)
}

// Critical logs at CRITICAL.
func (c ComponentLogger) Critical(tsNs uint64, msg string) {
	c.logger.Log(tsNs, Critical, Red, c.name, msg)
}
