// Package stream is the client for a live analysis backend. It submits a
// video as a multipart request and consumes either a framed incremental
// event stream or a single JSON report, translating the backend's field
// naming into the canonical report shape.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wicketlens/WicketLens/pkg/logger"
	"github.com/wicketlens/WicketLens/pkg/models"
)

const (
	// frameDelimiter separates complete frames in the event stream.
	frameDelimiter = "\n\n"
	// dataPrefix marks a frame's payload line.
	dataPrefix = "data: "

	// HealthTimeout bounds the reachability probe.
	HealthTimeout = 5 * time.Second

	readBufferSize = 4096
)

// StepFunc receives incremental pipeline stage updates during an analysis.
type StepFunc = func(models.Step)

// Client talks to one analysis backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	log     *logger.Logger
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the underlying HTTP client (tests, proxies).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpc = h }
}

// WithLogger substitutes the client's logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// NewClient builds a client for the backend at baseURL (no trailing slash
// required). Analyze and the read endpoints carry no client-side timeout;
// callers cancel via context. Health enforces its own 5 s bound.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		log:     logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL reports the configured backend address.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze submits the video and its settings, then consumes the response.
// An event-stream response is decoded incrementally; a plain JSON response
// is treated as an already-complete pipeline, with one completed step
// reported per known stage.
func (c *Client) Analyze(ctx context.Context, videoPath string, cfg models.MatchConfig, onStep StepFunc) (*models.DecisionReport, error) {
	if onStep == nil {
		onStep = func(models.Step) {}
	}

	video, err := os.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("opening video: %w", err)
	}
	defer video.Close()

	settings, err := json.Marshal(cfg.WithDefaults())
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("video", filepath.Base(videoPath))
		if err == nil {
			_, err = io.Copy(part, video)
		}
		if err == nil {
			err = mw.WriteField("settings", string(settings))
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submitting analysis: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "event-stream") {
		return c.consumeStream(resp.Body, onStep)
	}

	// Single JSON response: the backend ran the whole pipeline before
	// answering, so report every stage as completed up front.
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ParseError{Frame: "response body", Err: err}
	}
	for _, stage := range models.PipelineStages {
		onStep(models.Step{Name: stage, Status: models.StepCompleted})
	}
	if inner := getObject(payload, "result", "report"); inner != nil {
		payload = inner
	}
	return mapReport(payload), nil
}

// consumeStream reads the framed event stream. Bytes are appended to a
// buffer, the buffer is split on the blank-line delimiter, complete frames
// are dispatched and the remainder is kept for the next read, so a frame
// spanning a chunk boundary is never parsed early.
func (c *Client) consumeStream(body io.Reader, onStep StepFunc) (*models.DecisionReport, error) {
	buffered := ""
	chunk := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(chunk)
		if n > 0 {
			buffered += string(chunk[:n])
			for {
				idx := strings.Index(buffered, frameDelimiter)
				if idx < 0 {
					break
				}
				frame := buffered[:idx]
				buffered = buffered[idx+len(frameDelimiter):]

				report, done, err := c.dispatchFrame(frame, onStep)
				if err != nil {
					return nil, err
				}
				if done {
					return report, nil
				}
			}
		}
		if readErr == io.EOF {
			// Trailing frame without a final delimiter still counts.
			if frame := strings.TrimSpace(buffered); frame != "" {
				report, done, err := c.dispatchFrame(frame, onStep)
				if err != nil {
					return nil, err
				}
				if done {
					return report, nil
				}
			}
			return nil, ErrEmptyStream
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading event stream: %w", readErr)
		}
	}
}

// dispatchFrame parses one complete frame and routes it by its type
// discriminator. done is true for terminal result/error frames.
func (c *Client) dispatchFrame(frame string, onStep StepFunc) (report *models.DecisionReport, done bool, err error) {
	payload := ""
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, dataPrefix) {
			payload = strings.TrimPrefix(line, dataPrefix)
			break
		}
	}
	if payload == "" {
		// Comment or keep-alive frame.
		return nil, false, nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, false, &ParseError{Frame: payload, Err: err}
	}

	switch getString(m, "type") {
	case "step":
		if inner := getObject(m, "step"); inner != nil {
			onStep(mapStep(inner))
		} else {
			onStep(mapStep(m))
		}
		return nil, false, nil
	case "result":
		body := getObject(m, "report", "result")
		if body == nil {
			body = m
		}
		return mapReport(body), true, nil
	case "error":
		msg := getString(m, "message", "error")
		if msg == "" {
			msg = "unknown backend error"
		}
		return nil, true, &AnalysisError{Message: msg}
	default:
		c.log.Debugf("ignoring event frame with unknown type: %s", payload)
		return nil, false, nil
	}
}

// FetchResult retrieves a stored report by id.
func (c *Client) FetchResult(ctx context.Context, id string) (*models.DecisionReport, error) {
	var m map[string]any
	if err := c.getJSON(ctx, "/result/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	return mapReport(m), nil
}

// History lists past analyses, newest first. limit <= 0 means no limit.
func (c *Client) History(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	path := "/history"
	if limit > 0 {
		path = fmt.Sprintf("/history?limit=%d", limit)
	}
	var raw []map[string]any
	if err := c.getJSON(ctx, path, &raw); err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(raw))
	for _, m := range raw {
		entries = append(entries, mapHistoryEntry(m))
	}
	return entries, nil
}

// Stats retrieves the aggregate summary.
func (c *Client) Stats(ctx context.Context) (*models.StatsSummary, error) {
	var m map[string]any
	if err := c.getJSON(ctx, "/stats", &m); err != nil {
		return nil, err
	}
	stats := &models.StatsSummary{
		TotalAnalyses:     int(getNumber(m, "total_analyses", "totalAnalyses")),
		OutDecisions:      int(getNumber(m, "out_decisions", "outDecisions")),
		NotOutDecisions:   int(getNumber(m, "not_out_decisions", "notOutDecisions")),
		AverageConfidence: clampConfidence(getNumber(m, "average_confidence", "averageConfidence")),
	}
	for _, r := range getArray(m, "recent_analyses", "recentAnalyses") {
		if rm, ok := r.(map[string]any); ok {
			stats.Recent = append(stats.Recent, mapHistoryEntry(rm))
		}
	}
	return stats, nil
}

// Metrics retrieves the distribution breakdowns.
func (c *Client) Metrics(ctx context.Context) (*models.MetricsSummary, error) {
	var m map[string]any
	if err := c.getJSON(ctx, "/metrics", &m); err != nil {
		return nil, err
	}
	metrics := &models.MetricsSummary{
		ConfidenceDistribution: mapIntCounts(getObject(m, "confidence_distribution", "confidenceDistribution")),
		ImpactZones:            mapIntCounts(getObject(m, "impact_zone_distribution", "impactZoneDistribution")),
		PitchingZones:          mapIntCounts(getObject(m, "pitching_distribution", "pitchingDistribution")),
		TotalAnalyses:          int(getNumber(m, "total_analyses", "totalAnalyses")),
		AverageProcessingSec:   getNumber(m, "average_processing_time", "averageProcessingTime"),
	}
	if dd := getObject(m, "decision_distribution", "decisionDistribution"); dd != nil {
		metrics.DecisionDistribution = models.DecisionDistribution{
			Out:    int(getNumber(dd, "out")),
			NotOut: int(getNumber(dd, "not_out", "notOut")),
		}
	}
	if wp := getObject(m, "wicket_prediction", "wicketPrediction"); wp != nil {
		metrics.WicketPrediction = models.HitMissCount{
			Hitting: int(getNumber(wp, "hitting")),
			Missing: int(getNumber(wp, "missing")),
		}
	}
	return metrics, nil
}

// Delete removes a stored report. Reports true on HTTP success.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/result/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("deleting result: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

// Health probes the backend with a hard 5 second deadline. A slow or
// unreachable backend reads as offline; it never hangs the caller.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Debugf("backend health probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return &ServerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Frame: path, Err: err}
	}
	return nil
}

func mapIntCounts(m map[string]any) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		if n, ok := v.(float64); ok {
			out[k] = int(n)
		}
	}
	return out
}
