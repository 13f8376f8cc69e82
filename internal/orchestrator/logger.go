package orchestrator

import "github.com/whispin/modloader/internal/injector"

// fieldLogger prepends fixed fields to every entry
type fieldLogger struct {
	base   injector.Logger
	fields []interface{}
}

func with(base injector.Logger, fields ...interface{}) injector.Logger {
	return &fieldLogger{base: base, fields: fields}
}

func (l *fieldLogger) merge(fields []interface{}) []interface{} {
	out := make([]interface{}, 0, len(l.fields)+len(fields))
	out = append(out, l.fields...)
	return append(out, fields...)
}

func (l *fieldLogger) Info(msg string, fields ...interface{})  { l.base.Info(msg, l.merge(fields)...) }
func (l *fieldLogger) Warn(msg string, fields ...interface{})  { l.base.Warn(msg, l.merge(fields)...) }
func (l *fieldLogger) Error(msg string, fields ...interface{}) { l.base.Error(msg, l.merge(fields)...) }
func (l *fieldLogger) Debug(msg string, fields ...interface{}) { l.base.Debug(msg, l.merge(fields)...) }
