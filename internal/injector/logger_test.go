package injector

import (
	"fmt"
	"strings"
)

type mockLogger struct {
	logs []string
}

func (m *mockLogger) add(level, msg string, fields ...interface{}) {
	m.logs = append(m.logs, strings.TrimSpace(level+": "+msg+" "+fmt.Sprint(fields...)))
}

func (m *mockLogger) Info(msg string, fields ...interface{})  { m.add("INFO", msg, fields...) }
func (m *mockLogger) Warn(msg string, fields ...interface{})  { m.add("WARN", msg, fields...) }
func (m *mockLogger) Error(msg string, fields ...interface{}) { m.add("ERROR", msg, fields...) }
func (m *mockLogger) Debug(msg string, fields ...interface{}) { m.add("DEBUG", msg, fields...) }

func (m *mockLogger) has(prefix string) bool {
	for _, l := range m.logs {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}
