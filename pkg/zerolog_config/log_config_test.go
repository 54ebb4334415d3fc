package zerolog_config

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "", "clinic")
	logger.Info().Msg("server started")

	if !strings.Contains(buf.String(), "server started") {
		t.Errorf("Expected console output, got %q", buf.String())
	}
}

func TestNewLoggerShipsToElasticsearch(t *testing.T) {
	var hits int32
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		path = r.URL.Path
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := NewLogger(&buf, srv.URL, "clinic-api")
	logger.Warn().Msg("slow request")

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("Expected one document to be shipped, got %d", hits)
	}
	if path != "/clinic-api/_doc" {
		t.Errorf("Expected /clinic-api/_doc, got %s", path)
	}
	if !strings.Contains(buf.String(), "slow request") {
		t.Errorf("Expected console copy of the log line")
	}
}

func TestElasticsearchWriterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := ElasticsearchWriter{URL: srv.URL}.Write([]byte(`{}`))
	if err == nil {
		t.Error("Expected error on 400 response")
	}
}
