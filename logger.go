package modbus

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// LogLevel type defines the severity of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelNone // Disables logging
)

// LevelToString maps LogLevel to its string representation.
var LevelToString = map[LogLevel]string{
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
	LevelNone:    "NONE",
}

// StringToLevel maps string representation of LogLevel to its value.
var StringToLevel = map[string]LogLevel{
	"DEBUG":   LevelDebug,
	"INFO":    LevelInfo,
	"WARNING": LevelWarning,
	"ERROR":   LevelError,
	"NONE":    LevelNone,
}

var levelColors = map[LogLevel]*color.Color{
	LevelDebug:   color.New(color.FgCyan),
	LevelInfo:    color.New(color.FgGreen),
	LevelWarning: color.New(color.FgYellow),
	LevelError:   color.New(color.FgRed),
}

// SimpleLogger is the protocol-aware debug sink of the client. Besides
// plain leveled messages it knows how to render request/response
// traffic as indexed hex dumps and how to unpack a ModbusError into
// its kind, exception code and offending frame.
type SimpleLogger struct {
	mu         sync.Mutex
	level      LogLevel
	output     io.Writer
	timeFormat string
	prefix     string
}

// NewSimpleLogger creates a new SimpleLogger instance.
// If output is nil, it defaults to os.Stdout.
func NewSimpleLogger(output io.Writer, level LogLevel, prefix string) *SimpleLogger {
	if output == nil {
		output = os.Stdout
	}
	return &SimpleLogger{
		level:      level,
		output:     output,
		timeFormat: time.RFC3339,
		prefix:     prefix,
	}
}

// SetLevel sets the logging level of the SimpleLogger.
func (l *SimpleLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level of the SimpleLogger.
func (l *SimpleLogger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevelFromString sets the logging level from a string representation (e.g., "DEBUG").
func (l *SimpleLogger) SetLevelFromString(levelStr string) error {
	if level, ok := StringToLevel[strings.ToUpper(levelStr)]; ok {
		l.SetLevel(level)
		return nil
	}
	return fmt.Errorf("invalid log level: %s. Available levels: %v", levelStr, getAvailableLevels())
}

func getAvailableLevels() []string {
	levels := make([]string, 0, len(StringToLevel))
	for levelStr := range StringToLevel {
		levels = append(levels, levelStr)
	}
	return levels
}

// logf is the single emit path: timestamp, colored level tag, prefix.
func (l *SimpleLogger) logf(level LogLevel, format string, args ...any) {
	if l == nil || level < l.GetLevel() || l.GetLevel() == LevelNone {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	levelStr := LevelToString[level]
	if c, ok := levelColors[level]; ok {
		levelStr = c.Sprint(levelStr)
	}
	timestamp := time.Now().Format(l.timeFormat)
	message := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.output, "%s [%s] <%s> %s\n", timestamp, levelStr, l.prefix, message)
}

// Debugf logs a debug-level message.
func (l *SimpleLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

// Infof logs an info-level message.
func (l *SimpleLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

// Warningf logs a warning-level message.
func (l *SimpleLogger) Warningf(format string, args ...any) {
	l.logf(LevelWarning, format, args...)
}

// Errorf logs an error-level message.
func (l *SimpleLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

// Request logs an outgoing frame with its station and function code.
func (l *SimpleLogger) Request(station, function uint8, frame []byte) {
	l.logf(LevelDebug, "request station %d func %02X %s", station, function, formatFrameHex(frame))
}

// Response logs the raw reply collected for a station.
func (l *SimpleLogger) Response(station uint8, frame []byte) {
	l.logf(LevelDebug, "response station %d %s", station, formatFrameHex(frame))
}

// Fault logs a failed exchange. A ModbusError is broken into its kind
// and, for exception replies, the slave's code and the raw frame;
// anything else is reported as-is.
func (l *SimpleLogger) Fault(station uint8, err error) {
	var merr *ModbusError
	if !errors.As(err, &merr) {
		l.logf(LevelError, "station %d: %v", station, err)
		return
	}
	switch merr.Kind {
	case ErrKindException:
		l.logf(LevelWarning, "station %d answered exception 0x%02X (%s) to func %02X, frame %s",
			station, merr.ExceptionCode, merr.Message, merr.FunctionCode, formatFrameHex(merr.Frame))
	case ErrKindCRCMismatch, ErrKindShortFrame:
		l.logf(LevelError, "station %d: %s: %s, frame %s", station, merr.Kind, merr.Message, formatFrameHex(merr.Frame))
	default:
		l.logf(LevelError, "station %d: %s: %s", station, merr.Kind, merr.Message)
	}
}

// formatFrameHex renders a frame as index-annotated hex so a byte can
// be located in a dump without counting.
func formatFrameHex(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	var builder strings.Builder
	for i, b := range data {
		if i > 0 {
			builder.WriteByte(' ')
		}
		fmt.Fprintf(&builder, "%02X[%02d]", b, i)
	}
	return builder.String()
}
