package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Extractor reads a request-scoped value such as the tenant or request id.
type Extractor func(context.Context) (string, bool)

// Logger stamps events with context values and hands them to Storage.
type Logger struct {
	storage Storage
	fillers []func(context.Context, *Event)
	now     func() time.Time
}

type Option func(*Logger)

// extract copies an extracted value into the field set returns.
func extract(fn Extractor, set func(*Event) *string) Option {
	return func(l *Logger) {
		if fn == nil {
			return
		}
		l.fillers = append(l.fillers, func(ctx context.Context, e *Event) {
			if v, ok := fn(ctx); ok {
				*set(e) = v
			}
		})
	}
}

func WithTenantIDExtractor(fn Extractor) Option {
	return extract(fn, func(e *Event) *string { return &e.TenantID })
}

func WithActorExtractor(fn Extractor) Option {
	return extract(fn, func(e *Event) *string { return &e.ActorID })
}

func WithRequestIDExtractor(fn Extractor) Option {
	return extract(fn, func(e *Event) *string { return &e.RequestID })
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger panics on nil storage.
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action. Event options run after the context
// extractors, so explicit values win.
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.record(ctx, action, ResultSuccess, nil, opts)
}

func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	return l.record(ctx, action, ResultError, err, opts)
}

func (l *Logger) record(ctx context.Context, action string, result Result, cause error, opts []EventOption) error {
	e := Event{
		ID:        eventID(),
		Action:    action,
		Result:    result,
		CreatedAt: l.now().UTC(),
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	for _, fill := range l.fillers {
		fill(ctx, &e)
	}
	for _, opt := range opts {
		opt(&e)
	}
	if err := e.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, e)
}

// eventID is time-ordered so storage indexes stay append-mostly.
func eventID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
