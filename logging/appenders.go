package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the layout used to render log timestamps.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// An Appender receives fully formed log entries and writes them somewhere.
type Appender interface {
	// Write renders and records a single entry. Implementations must be safe for
	// concurrent use and must emit each entry as one unbroken record.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync flushes any buffered output.
	Sync() error
}

// Return example: "logging/impl_test.go:36".
func callerToString(caller *zapcore.EntryCaller) string {
	return fmt.Sprintf("%s:%d", trimPackagePath(caller.File), caller.Line)
}

// The file returned by `runtime.Caller` is a full path. We only want to keep the
// `<package>/<file>` part.
func trimPackagePath(file string) string {
	numSlashes := 0
	idx := strings.LastIndexFunc(file, func(r rune) bool {
		if r == '/' {
			numSlashes++
		}
		return numSlashes == 2
	})

	return file[idx+1:]
}

// ConsoleAppender writes human readable log lines to an output stream. A single mutex
// is held across formatting and writing, so concurrent loggers sharing an appender can
// never interleave bytes within a record.
type ConsoleAppender struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterAppender returns an appender that writes to an arbitrary stream.
func NewWriterAppender(out io.Writer) *ConsoleAppender {
	return &ConsoleAppender{out: out}
}

// NewStdoutAppender creates a new appender that prints to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// Write renders the entry and emits it as one record.
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	appender.mu.Lock()
	defer appender.mu.Unlock()

	const maxLength = 10
	toPrint := make([]string, 0, maxLength)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	if entry.LoggerName != "" {
		toPrint = append(toPrint, entry.LoggerName)
	}
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)

	if len(fields) > 0 {
		// Use zap's json encoder which will encode our slice of fields in-order. As
		// opposed to the random iteration order of a map. Call it with an empty Entry
		// object such that only the fields become "map-ified".
		jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
		buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
		if err != nil {
			return err
		}
		toPrint = append(toPrint, string(buf.Bytes()))
	}

	_, err := fmt.Fprintln(appender.out, strings.Join(toPrint, "\t"))
	return err
}

// Sync is a no-op.
func (appender *ConsoleAppender) Sync() error {
	return nil
}

// FileAppender mirrors ConsoleAppender output into a size-rotated file.
type FileAppender struct {
	*ConsoleAppender
	lumber *lumberjack.Logger
}

// NewFileAppender returns an appender that writes to the given path, rotating and
// compressing old files as the log grows.
func NewFileAppender(path string) *FileAppender {
	lumber := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}

	return &FileAppender{
		ConsoleAppender: NewWriterAppender(lumber),
		lumber:          lumber,
	}
}

// Close stops rotation and closes the underlying file.
func (appender *FileAppender) Close() error {
	return appender.lumber.Close()
}
