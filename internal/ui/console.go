package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// consoleLog writes plain one-line log entries
type consoleLog struct {
	out io.Writer
	mu  sync.Mutex
	now func() time.Time
}

func newConsoleLog(out io.Writer) *consoleLog {
	return &consoleLog{out: out, now: time.Now}
}

// WriteLog formats entry as "15:04 LEVEL message key: value, key: value"
func (c *consoleLog) WriteLog(entry zapcore.Entry, fields []zapcore.Field) error {
	var sb strings.Builder

	sb.WriteString(c.now().Format("15:04"))
	sb.WriteString(" ")

	switch entry.Level {
	case zapcore.InfoLevel:
		sb.WriteString("INFO")
	case zapcore.WarnLevel:
		sb.WriteString("WARN")
	case zapcore.ErrorLevel:
		sb.WriteString("ERROR")
	case zapcore.DebugLevel:
		sb.WriteString("DEBUG")
	default:
		sb.WriteString(strings.ToUpper(entry.Level.String()))
	}
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	if len(fields) > 0 {
		sb.WriteString(" ")
		for i, field := range fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(field.Key)
			sb.WriteString(": ")
			sb.WriteString(fieldValue(field))
		}
	}

	text := sb.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out == nil {
		return nil
	}
	_, err := io.WriteString(c.out, text+"\n")
	return err
}

func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		return strconv.FormatInt(field.Integer, 10)
	case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type, zapcore.UintptrType:
		return strconv.FormatUint(uint64(field.Integer), 10)
	case zapcore.BoolType:
		return strconv.FormatBool(field.Integer == 1)
	case zapcore.DurationType:
		return time.Duration(field.Integer).String()
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if s, ok := field.Interface.(string); ok {
		return s
	}
	if s, ok := field.Interface.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", field.Interface)
}

// zapConsoleCore implements zapcore.Core on top of consoleLog
type zapConsoleCore struct {
	console *consoleLog
	level   zapcore.LevelEnabler
	fields  []zapcore.Field
}

func newZapConsoleCore(console *consoleLog, level zapcore.LevelEnabler) zapcore.Core {
	return &zapConsoleCore{console: console, level: level}
}

func (c *zapConsoleCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *zapConsoleCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.clone()
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (c *zapConsoleCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *zapConsoleCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if len(c.fields) == 0 {
		return c.console.WriteLog(ent, fields)
	}
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return c.console.WriteLog(ent, all)
}

func (c *zapConsoleCore) Sync() error {
	return nil
}

func (c *zapConsoleCore) clone() *zapConsoleCore {
	return &zapConsoleCore{
		console: c.console,
		level:   c.level,
		fields:  append([]zapcore.Field(nil), c.fields...),
	}
}

// Console is the terminal log sink used by the command line front end
type Console struct {
	log    *consoleLog
	level  zap.AtomicLevel
	logger *zap.Logger
}

// NewConsole creates a console logger writing to out at the given level
// ("debug", "info", "warn", "error").
func NewConsole(out io.Writer, level string) (*Console, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	c := &Console{
		log:   newConsoleLog(out),
		level: lvl,
	}
	c.logger = zap.New(newZapConsoleCore(c.log, c.level))
	return c, nil
}

// Log returns the underlying zap logger
func (c *Console) Log() *zap.Logger {
	return c.logger
}

// Adapter returns the console as an injector.Logger
func (c *Console) Adapter() *LoggerAdapter {
	return NewLoggerAdapter(c.logger)
}

// SetLevel changes the minimum level at runtime
func (c *Console) SetLevel(level zapcore.Level) {
	c.level.SetLevel(level)
}
