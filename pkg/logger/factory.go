package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the record encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config overrides the environment preset. Empty fields keep it.
type Config struct {
	Level  string `env:"LOG_LEVEL"`  // debug, info, warn, error
	Format Format `env:"LOG_FORMAT"` // json or text
}

type Option func(*options)

type options struct {
	level      slog.Level
	format     Format
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
	redact     []string
}

func WithLevel(l slog.Level) Option {
	return func(o *options) { o.level = l }
}

// WithFormat ignores anything but FormatJSON and FormatText.
func WithFormat(f Format) Option {
	return func(o *options) {
		if f == FormatJSON || f == FormatText {
			o.format = f
		}
	}
}

// WithConfig applies LOG_LEVEL and LOG_FORMAT on top of earlier options.
// Unparseable levels are ignored.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		var lvl slog.Level
		if cfg.Level != "" && lvl.UnmarshalText([]byte(cfg.Level)) == nil {
			o.level = lvl
		}
		WithFormat(Format(strings.ToLower(string(cfg.Format))))(o)
	}
}

// WithOutput sets the destination writer. Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.output = w
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextExtractors registers callbacks that pull attributes from the
// context of each record. Nil extractors are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) {
		for _, ex := range extractors {
			if ex != nil {
				o.extractors = append(o.extractors, ex)
			}
		}
	}
}

// WithRedactedKeys masks the values of attributes with these keys, in
// addition to the built-in credential keys. Matching ignores case.
func WithRedactedKeys(keys ...string) Option {
	return func(o *options) { o.redact = append(o.redact, keys...) }
}

// WithEnvironment tags records with service and env and picks defaults for
// APP_ENV: JSON at info for production and staging, text at debug otherwise.
func WithEnvironment(env, service string) Option {
	return func(o *options) {
		switch strings.ToLower(env) {
		case "production", "prod":
			env, o.level, o.format = "production", slog.LevelInfo, FormatJSON
		case "staging", "stage":
			env, o.level, o.format = "staging", slog.LevelInfo, FormatJSON
		default:
			env, o.level, o.format = "development", slog.LevelDebug, FormatText
		}
		if service != "" {
			o.attrs = append(o.attrs, slog.String("service", service), slog.String("env", env))
		}
	}
}

func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// New builds a logger. Without options it writes JSON at info to stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo, format: FormatJSON, output: os.Stdout, redact: defaultRedacted}
	for _, opt := range opts {
		opt(o)
	}

	ho := &slog.HandlerOptions{Level: o.level, ReplaceAttr: redactor(o.redact)}
	var h slog.Handler = slog.NewJSONHandler(o.output, ho)
	if o.format == FormatText {
		h = slog.NewTextHandler(o.output, ho)
	}
	if len(o.attrs) > 0 {
		h = h.WithAttrs(o.attrs)
	}
	if len(o.extractors) > 0 {
		h = contextHandler{Handler: h, extractors: o.extractors}
	}
	return slog.New(h)
}

// Nop discards everything. Constructors taking an optional logger default to
// it.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
