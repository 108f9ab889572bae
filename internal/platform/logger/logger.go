package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel acepta debug|info|warn|error; cualquier otro valor cae en info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// FileOptions configura la rotación del archivo de log (lumberjack).
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Options struct {
	Level  string
	Format string
	App    string
	// File nil => solo stdout.
	File *FileOptions
	// Out reemplaza stdout (tests).
	Out io.Writer
}

// New arma el logger base de la app.
// text => ConsoleWriter legible; json => una línea JSON por evento.
// Si File != nil, además escribe JSON al archivo rotado.
func New(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	var console io.Writer = out
	if ParseFormat(opts.Format) == FormatText {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	w := console
	if opts.File != nil && strings.TrimSpace(opts.File.Path) != "" {
		w = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    opts.File.MaxSizeMB,
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
			Compress:   opts.File.Compress,
		})
	}

	ctx := zerolog.New(w).Level(ParseLevel(opts.Level)).With().Timestamp()
	if app := strings.TrimSpace(opts.App); app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}
