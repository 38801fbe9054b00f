package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/StockHamster/market-calendar/pkg/config"
	"github.com/sirupsen/logrus"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&config.LoggingConfig{Level: "loud", Format: "text", Output: "stdout"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestCustomTextFormatterSortsFields(t *testing.T) {
	f := &CustomTextFormatter{TextFormatter: logrus.TextFormatter{TimestampFormat: "15:04:05"}}
	entry := logrus.NewEntry(logrus.New()).WithFields(logrus.Fields{"b": 2, "a": 1})
	entry.Message = "hello"
	entry.Level = logrus.InfoLevel

	out, err := f.Format(entry)
	if err != nil {
		t.Fatal(err)
	}
	line := string(out)
	if !strings.Contains(line, "hello | a=1 b=2") {
		t.Fatalf("unexpected line: %q", line)
	}
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	h := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("status not logged: %s", buf.String())
	}
}

func TestWithDateKeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	WithDate(log.WithField("component", "loader"), "20250630").Info("loaded")

	out := buf.String()
	if !strings.Contains(out, `"date":"20250630"`) || !strings.Contains(out, `"component":"loader"`) {
		t.Fatalf("fields missing: %s", out)
	}
}
