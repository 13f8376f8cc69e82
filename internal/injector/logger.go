package injector

// Logger defines the interface for logging. Fields are alternating keys and values.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// SilentLogger discards all output (for when no logger is set)
type SilentLogger struct{}

func (l *SilentLogger) Info(msg string, fields ...interface{}) {
	// Do nothing - silent
}

func (l *SilentLogger) Warn(msg string, fields ...interface{}) {
	// Do nothing - silent
}

func (l *SilentLogger) Error(msg string, fields ...interface{}) {
	// Do nothing - silent
}

func (l *SilentLogger) Debug(msg string, fields ...interface{}) {
	// Do nothing - silent
}

// OrSilent returns logger, or a SilentLogger when logger is nil
func OrSilent(logger Logger) Logger {
	if logger == nil {
		return &SilentLogger{}
	}
	return logger
}
