package zerolog_config

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce *sync.Once = &sync.Once{}
var startupLoggerOnce *sync.Once = &sync.Once{}

// ElasticsearchWriter ships each log line to an index as one document
type ElasticsearchWriter struct {
	URL    string
	Client *http.Client
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	client := ew.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}

	resp, err := client.Post(ew.URL+"/_doc", "application/json", bytes.NewReader(p))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}
	return len(p), nil
}

// ParseLevel turns a LOG_LEVEL value into a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger builds the logger used for the whole process. With an empty
// elasticsearchURL only the console writer is attached.
func NewLogger(console io.Writer, elasticsearchURL, subAddress string) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	if elasticsearchURL == "" {
		return zerolog.New(consoleWriter).With().Str("app", appPrefix).Timestamp().Logger()
	}

	// ECS to Elasticsearch, pretty to console
	ecsLogger := ecszerolog.New(&ElasticsearchWriter{
		URL:    elasticsearchURL + "/" + subAddress,
		Client: &http.Client{Timeout: 2 * time.Second},
	})
	multi := zerolog.MultiLevelWriter(ecsLogger, consoleWriter)

	return zerolog.New(multi).With().Str("app", appPrefix).Timestamp().Logger()
}

// SetAppPrefix sets the app prefix
func SetAppPrefix(subAddress string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = subAddress
	})
}

// StartupWithEnv installs the global logger once per process.
// Run SetAppPrefix before StartupWithEnv.
func StartupWithEnv(elasticsearchURL, subAddress, level string) error {
	if subAddress == "" {
		return fmt.Errorf("subAddress is required")
	}
	startupLoggerOnce.Do(func() {
		zerolog.SetGlobalLevel(ParseLevel(level))
		log.Logger = NewLogger(os.Stdout, elasticsearchURL, subAddress)
	})
	return nil
}
