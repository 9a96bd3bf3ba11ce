package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Field struct {
	Key   string
	Value interface{}
}

var base = newBase(os.Stdout)

func newBase(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "ts",
		},
	})
	l.SetLevel(levelFromEnv())
	return l
}

// levelFromEnv keeps DEBUG=1 working alongside LOG_LEVEL.
func levelFromEnv() logrus.Level {
	if os.Getenv("DEBUG") == "1" {
		return logrus.DebugLevel
	}
	if lvl, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		return lvl
	}
	return logrus.InfoLevel
}

// SetOutput redirects all log lines, mainly for tests.
func SetOutput(w io.Writer) { base.SetOutput(w) }

// SetDebug toggles debug output at runtime.
func SetDebug(on bool) {
	if on {
		base.SetLevel(logrus.DebugLevel)
		return
	}
	base.SetLevel(logrus.InfoLevel)
}

func entry(fields []Field, err error) *logrus.Entry {
	data := make(logrus.Fields, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	e := base.WithFields(data)
	if err != nil {
		e = e.WithError(err)
	}
	return e
}

func Info(msg string, fields ...Field) {
	entry(fields, nil).Info(msg)
}

func Warn(msg string, err error, fields ...Field) {
	entry(fields, err).Warn(msg)
}

func Error(msg string, err error, fields ...Field) {
	entry(fields, err).Error(msg)
}

func Debug(msg string, fields ...Field) {
	if !base.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	entry(fields, nil).Debug(msg)
}

func FieldKV(key string, value interface{}) Field { return Field{Key: key, Value: value} }
