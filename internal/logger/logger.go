// Package logger provides the engine's package-level structured logger: a
// slog.Logger configurable by level and format, with a color-capable text
// handler for terminal output and a request-scoped Context carrying
// procedure/xid/client fields through the call chain.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// Level mirrors slog's levels without exposing slog in callers' imports.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config selects the logger's level, output format, and destination.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value

	mu      sync.RWMutex
	output  io.Writer = os.Stdout
	color             = true
	slogger *slog.Logger
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	if f, ok := output.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}
	reconfigure()
}

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	level := new(slog.LevelVar)
	level.Set(Level(currentLevel.Load()).toSlog())
	opts := &slog.HandlerOptions{Level: level}

	format, _ := currentFormat.Load().(string)
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = newColorTextHandler(output, opts, color)
	}
	slogger = slog.New(h)
}

// Init applies cfg to the package-level logger. Unset fields leave the
// current setting unchanged, so a zero Config is a no-op.
func Init(cfg Config) error {
	if cfg.Output != "" {
		mu.Lock()
		switch strings.ToLower(cfg.Output) {
		case "stdout":
			output, color = os.Stdout, isatty.IsTerminal(os.Stdout.Fd())
		case "stderr":
			output, color = os.Stderr, isatty.IsTerminal(os.Stderr.Fd())
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				mu.Unlock()
				return fmt.Errorf("open log file %q: %w", cfg.Output, err)
			}
			output, color = f, false
		}
		mu.Unlock()
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

// SetLevel sets the minimum level logged; an unrecognized value is ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	default:
		return
	}
	reconfigure()
}

// SetFormat sets "text" or "json" output; an unrecognized value is ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

func Debug(msg string, args ...any) { get().Debug(msg, args...) }
func Info(msg string, args ...any)  { get().Info(msg, args...) }
func Warn(msg string, args ...any)  { get().Warn(msg, args...) }
func Error(msg string, args ...any) { get().Error(msg, args...) }

// DebugCtx/InfoCtx/WarnCtx/ErrorCtx prepend the fields carried on ctx (see
// context.go) ahead of the call's own args.
func DebugCtx(ctx context.Context, msg string, args ...any) { get().Debug(msg, withCtx(ctx, args)...) }
func InfoCtx(ctx context.Context, msg string, args ...any)  { get().Info(msg, withCtx(ctx, args)...) }
func WarnCtx(ctx context.Context, msg string, args ...any)  { get().Warn(msg, withCtx(ctx, args)...) }
func ErrorCtx(ctx context.Context, msg string, args ...any) { get().Error(msg, withCtx(ctx, args)...) }

func withCtx(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	prefix := make([]any, 0, 8+len(args))
	if lc.Procedure != "" {
		prefix = append(prefix, KeyProcedure, lc.Procedure)
	}
	if lc.ClientAddr != "" {
		prefix = append(prefix, KeyClientAddr, lc.ClientAddr)
	}
	prefix = append(prefix, KeyXID, lc.XID)
	if lc.UID != 0 {
		prefix = append(prefix, KeyUID, lc.UID)
	}
	if lc.GID != 0 {
		prefix = append(prefix, KeyGID, lc.GID)
	}
	return append(prefix, args...)
}

// With returns a derived *slog.Logger with args bound, for callers that
// want to reuse a prefix across several log calls.
func With(args ...any) *slog.Logger { return get().With(args...) }
