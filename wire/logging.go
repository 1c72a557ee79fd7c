package wire

import (
	"github.com/sirupsen/logrus"
)

// Logger wraps logrus with the standardized field set: "package" and
// "function" on every entry, with additional fields layered on per call
// site. The other dmesh-core packages do not use it; they call
// logrus.WithFields directly with the same two fields.
type Logger struct {
	fields logrus.Fields
}

// NewLogger returns a logger tagged with the given package and function
// names. Call sites add call-specific fields with With before logging.
func NewLogger(pkg, function string) *Logger {
	return &Logger{fields: logrus.Fields{"package": pkg, "function": function}}
}

// With returns a derived logger carrying an additional field, leaving the
// receiver untouched.
func (l *Logger) With(key string, value interface{}) *Logger {
	next := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		next[k] = v
	}
	next[key] = value
	return &Logger{fields: next}
}

// WithFields is the multi-field form of With.
func (l *Logger) WithFields(fields logrus.Fields) *Logger {
	next := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		next[k] = v
	}
	for k, v := range fields {
		next[k] = v
	}
	return &Logger{fields: next}
}

func (l *Logger) Debug(msg string) { logrus.WithFields(l.fields).Debug(msg) }
func (l *Logger) Info(msg string)  { logrus.WithFields(l.fields).Info(msg) }
func (l *Logger) Warn(msg string)  { logrus.WithFields(l.fields).Warn(msg) }
func (l *Logger) Error(msg string) { logrus.WithFields(l.fields).Error(msg) }

// Preview returns the first n bytes of b, hex-encoded, for safe logging of
// otherwise-sensitive byte material (keys, fingerprints). When n is at
// least len(b), the whole of b is returned.
func Preview(b []byte, n int) string {
	if n > len(b) {
		n = len(b)
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, n*2)
	for i, c := range b[:n] {
		out[i*2] = hexdigits[c>>4]
		out[i*2+1] = hexdigits[c&0xf]
	}
	return string(out)
}
