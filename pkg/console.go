package salvator

// Text handler format from
// https://stackoverflow.com/questions/77422213/how-to-hide-all-keys-when-using-slog-in-golang

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler writes records as "[time] [attr values...] message", hiding the
// attribute keys.
type Handler struct {
	h   slog.Handler
	mu  *sync.Mutex
	out io.Writer
}

func NewHandler(o io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out: o,
		h: slog.NewTextHandler(o, &slog.HandlerOptions{
			Level:     opts.Level,
			AddSource: opts.AddSource,
		}),
		mu: &sync.Mutex{},
	}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{h: h.h.WithAttrs(attrs), out: h.out, mu: h.mu}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{h: h.h.WithGroup(name), out: h.out, mu: h.mu}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	fields := []string{r.Time.Format("[2006/01/02 15:04:05]")}
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, fmt.Sprintf("[%s]", a.Value.String()))
		return true
	})
	fields = append(fields, r.Message)
	line := strings.Join(fields, " ") + "\n"

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.out, line)
	return err
}

// ConsoleLogger is the Logger used by the executables: informational
// messages go to InfoLog tagged with their module, errors to ErrorLog.
type ConsoleLogger struct {
	InfoLog  *slog.Logger
	ErrorLog *slog.Logger
}

// NewConsoleLogger logs text to stdout and JSON errors to stderr.
func NewConsoleLogger() ConsoleLogger {
	return NewConsoleLoggerTo(os.Stdout, os.Stderr)
}

func NewConsoleLoggerTo(info, errs io.Writer) ConsoleLogger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return ConsoleLogger{
		InfoLog:  slog.New(NewHandler(info, opts)),
		ErrorLog: slog.New(slog.NewJSONHandler(errs, opts)),
	}
}

func (l ConsoleLogger) Info(message string, module string) {
	l.InfoLog.Info(message, "module", module)
}

func (l ConsoleLogger) Error(message string) {
	l.ErrorLog.Error(message)
}
