// log/log.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger adds call stacks to slog records. A nil *Logger is usable:
// debug and info records are dropped and warnings and errors go to the
// default slog logger.
type Logger struct {
	*slog.Logger
	LogFile string
	LogDir  string
	Start   time.Time
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func parseLevel(level string) (slog.Level, bool) {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		return slog.LevelInfo, false
	}
	return lvl, true
}

// New returns a Logger that writes JSON records to aitraffic.slog in dir,
// rotating it by size. An empty dir means the user's config directory.
func New(level string, dir string) *Logger {
	if dir == "" {
		if cfg, err := os.UserConfigDir(); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to find user config dir: %v\n", err)
			dir = "."
		} else {
			dir = filepath.Join(cfg, "aitraffic")
		}
	}

	lvl, ok := parseLevel(level)
	if !ok {
		fmt.Fprintf(os.Stderr, "%s: invalid log level; using info\n", level)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "aitraffic.slog"),
		MaxSize:    32, // MB
		MaxBackups: 1,
	}
	if lvl == slog.LevelDebug {
		w.MaxSize = 512
	}

	l := newLogger(w, lvl)
	l.LogFile, l.LogDir = w.Filename, dir
	l.logBuild()
	return l
}

func (l *Logger) logBuild() {
	l.Info("starting", slog.Time("start", l.Start), slog.String("GOARCH", runtime.GOARCH),
		slog.String("GOOS", runtime.GOOS), slog.Int("NumCPUs", runtime.NumCPU()))

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	var deps []any
	for _, dep := range bi.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		deps = append(deps, slog.String(dep.Path, dep.Version))
	}
	l.Info("build", slog.String("go", bi.GoVersion), slog.String("path", bi.Path),
		slog.Group("deps", deps...))
}

// NewWriter returns a Logger that writes JSON records to w; tests use it
// to look at what was logged.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, _ := parseLevel(level)
	return newLogger(w, lvl)
}

func newLogger(w io.Writer, lvl slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})),
		Start:  time.Now(),
	}
}

// log emits a record with the stack of the code that called the public
// logging method.
func (l *Logger) log(lvl slog.Level, msg string, args []any) {
	ctx := context.Background()
	if l == nil {
		if lvl >= slog.LevelWarn {
			slog.Log(ctx, lvl, msg, append([]any{slog.Any("callstack", callstack(nil, 4))}, args...)...)
		}
		return
	}
	if l.Logger.Enabled(ctx, lvl) {
		l.Logger.Log(ctx, lvl, msg, append([]any{slog.Any("callstack", callstack(nil, 4))}, args...)...)
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

// The f variants format the message; they take no attributes.
func (l *Logger) Debugf(msg string, args ...any) { l.log(slog.LevelDebug, fmt.Sprintf(msg, args...), nil) }
func (l *Logger) Infof(msg string, args ...any)  { l.log(slog.LevelInfo, fmt.Sprintf(msg, args...), nil) }
func (l *Logger) Warnf(msg string, args ...any)  { l.log(slog.LevelWarn, fmt.Sprintf(msg, args...), nil) }
func (l *Logger) Errorf(msg string, args ...any) { l.log(slog.LevelError, fmt.Sprintf(msg, args...), nil) }

func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	w := *l
	w.Logger = l.Logger.With(args...)
	return &w
}

// CatchAndReportCrash must be deferred directly. It recovers from a panic,
// logs it, and writes a crash report with the stack next to the log file.
// The recovered value is returned.
func (l *Logger) CatchAndReportCrash() any {
	// Let the debugger have the panic.
	if dlv, ok := os.LookupEnv("_"); ok && strings.HasSuffix(dlv, "/dlv") {
		return nil
	}

	err := recover()
	if err == nil {
		return nil
	}
	l.Errorf("Crashed: %v", err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Crashed: %v\nSys: %s/%s\n", err, runtime.GOARCH, runtime.GOOS)
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			fmt.Fprintf(&sb, "%s: %s\n", s.Key, s.Value)
		}
	}
	sb.Write(debug.Stack())

	if l != nil && l.LogDir != "" {
		fn := filepath.Join(l.LogDir, "crash-"+time.Now().Format(time.RFC3339)+".txt")
		_ = os.WriteFile(fn, []byte(sb.String()), 0o600)
	}
	return err
}
