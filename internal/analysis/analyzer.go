// Package analysis turns an uploaded medical report into structured findings,
// using a generateContent-style model endpoint when one is configured and a
// deterministic mock otherwise.
package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/clinic"
	"stealthcompany.com/clinicportal/internal/metrics"
)

const (
	APIKeyHeader   = "X-goog-api-key"
	metricEndpoint = "analysis"
	maxReplyBytes  = 4 << 20
)

const prompt = `You are a medical AI assistant analyzing a medical report. Please analyze this medical report and provide:
1. A brief summary of the report
2. List all health parameters found with their values, units, and normal ranges
3. Identify any risk factors or abnormal values
4. Provide health recommendations based on the findings

Format your response as a JSON object with this exact structure:
{
  "summary": "Brief summary of the report",
  "reportType": "Type of report (e.g., Complete Blood Count, Lipid Profile, General Checkup)",
  "parameters": [
    {"name": "Parameter name", "value": "Measured value", "unit": "Unit of measurement",
     "normalRange": "Normal range", "status": "normal|low|high|critical",
     "category": "Category (Blood/Liver/Kidney/Lipid Profile/etc)"}
  ],
  "riskFactors": [
    {"severity": "low|medium|high|critical", "title": "Risk factor title",
     "description": "Detailed description", "recommendation": "What to do about it"}
  ],
  "recommendations": ["Recommendation 1", "Recommendation 2"]
}

Important:
- Mark status as "low" if below normal range, "high" if above normal range, "critical" if dangerously out of range
- Provide specific, actionable recommendations
- Use Indian medical standards and units (e.g., mg/dL for glucose)`

var (
	ErrNotConfigured = errors.New("analysis endpoint not configured")
	ErrBadReply      = errors.New("invalid response format from analysis endpoint")

	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareJSON   = regexp.MustCompile(`(?s)\{.*\}`)
)

// Analyzer produces findings for a report file.
type Analyzer interface {
	Analyze(ctx context.Context, fileName, mimeType string, data []byte) (*clinic.Analysis, error)
}

// Client calls the model endpoint and falls back to MockAnalysis on any
// failure other than the caller giving up.
type Client struct {
	httpClient *http.Client
	url        string
	apiKey     string
	now        func() time.Time
}

func NewClient(url, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:    url,
		apiKey: apiKey,
		now:    time.Now,
	}
}

func (c *Client) Analyze(ctx context.Context, fileName, mimeType string, data []byte) (*clinic.Analysis, error) {
	result, err := c.Remote(ctx, fileName, mimeType, data)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if !errors.Is(err, ErrNotConfigured) {
		log.Warn().Err(err).Str("file", fileName).Msg("Report analysis failed, falling back to mock analysis")
	}
	return MockAnalysis(fileName, c.now()), nil
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Remote performs the model call without any fallback.
func (c *Client) Remote(ctx context.Context, fileName, mimeType string, data []byte) (*clinic.Analysis, error) {
	if c.url == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{
		{Text: prompt},
		{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
	}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	log.Info().Str("file", fileName).Int("size_bytes", len(data)).Msg("Analyzing medical report")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(metricEndpoint, startTime, 0)
		return nil, fmt.Errorf("failed to call analysis endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close response body")
		}
	}()
	metrics.RecordRemoteRequest(metricEndpoint, startTime, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	var reply generateResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if len(reply.Candidates) == 0 || len(reply.Candidates[0].Content.Parts) == 0 {
		return nil, ErrBadReply
	}

	result, err := ParseAnalysis(reply.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	result.AnalyzedAt = c.now().UTC()

	log.Info().Str("file", fileName).Str("report_type", result.ReportType).Msg("Analyzed medical report")
	return result, nil
}

// ParseAnalysis extracts the JSON object from model output. A ```json fence
// wins over the outermost braces.
func ParseAnalysis(text string) (*clinic.Analysis, error) {
	var doc string
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		doc = m[1]
	} else if m := bareJSON.FindString(text); m != "" {
		doc = m
	} else {
		return nil, ErrBadReply
	}

	var result clinic.Analysis
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if result.Parameters == nil {
		result.Parameters = []clinic.HealthParameter{}
	}
	if result.RiskFactors == nil {
		result.RiskFactors = []clinic.RiskFactor{}
	}
	if result.Recommendations == nil {
		result.Recommendations = []string{}
	}
	return &result, nil
}
