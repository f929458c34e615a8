package log

import (
	"fmt"
	"strings"

	"github.com/petermattis/goid"
	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders entry according to a pattern string supporting %time,
// %level, %field, %msg, %caller, %func and %goroutine placeholders.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	output = strings.Replace(output, "%caller", callerLocation(entry), 1)
	output = strings.Replace(output, "%func", callerFunc(entry), 1)
	output = strings.Replace(output, "%goroutine", fmt.Sprintf("%d", goid.Get()), 1)
	return []byte(output), nil
}

// callerLocation renders the logging call site as pkg/file.go:line, falling
// back to "unknown" when logrus wasn't configured to record caller info.
func callerLocation(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	file := entry.Caller.File
	if idx := strings.LastIndex(file, "/"); idx != -1 && idx+1 < len(file) {
		file = file[idx+1:]
	}

	pkg := ""
	if entry.Caller.Function != "" {
		parts := strings.Split(entry.Caller.Function, ".")
		if len(parts) > 1 {
			pkgParts := strings.Split(parts[0], "/")
			pkg = pkgParts[len(pkgParts)-1]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, entry.Caller.Line)
}

// callerFunc renders just the function/method name of the logging call
// site, dropping its package-qualified prefix.
func callerFunc(entry *logrus.Entry) string {
	if !entry.HasCaller() {
		return "unknown"
	}
	name := entry.Caller.Function
	if idx := strings.LastIndex(name, "."); idx != -1 && idx+1 < len(name) {
		return name[idx+1:]
	}
	return name
}

// buildFields renders entry.Data as a comma-joined key=value list, the
// shape %field expands to in the default pattern.
func buildFields(entry *logrus.Entry) string {
	fields := make([]string, 0, len(entry.Data))
	for key, val := range entry.Data {
		s, ok := val.(string)
		if !ok {
			s = fmt.Sprint(val)
		}
		fields = append(fields, key+"="+s)
	}
	return strings.Join(fields, ",")
}
