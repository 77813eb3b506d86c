package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wicketlens/WicketLens/pkg/models"
)

func writeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "delivery.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0644))
	return path
}

// drainUpload runs inside handler goroutines, so it uses assert (FailNow is
// only valid on the test goroutine).
func drainUpload(t *testing.T, r *http.Request) {
	t.Helper()
	if !assert.NoError(t, r.ParseMultipartForm(32<<20)) {
		return
	}
	_, _, err := r.FormFile("video")
	assert.NoError(t, err, "upload must carry a video part")
	assert.NotEmpty(t, r.FormValue("settings"), "upload must carry settings")
}

func collectSteps() (*[]models.Step, StepFunc) {
	steps := &[]models.Step{}
	return steps, func(s models.Step) { *steps = append(*steps, s) }
}

func TestAnalyzeEventStream(t *testing.T) {
	frames := []string{
		`data: {"type":"step","step":"ball_detection","status":"processing"}` + "\n\n",
		`data: {"type":"step","step":"ball_detection","status":"completed"}` + "\n\n",
		`data: {"type":"result","report":{"id":"lbw-1","decision":"OUT","confidence":81.5,"video_name":"delivery.mp4"}}` + "\n\n",
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drainUpload(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprint(w, f)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	steps, onStep := collectSteps()
	client := NewClient(srv.URL)
	report, err := client.Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), onStep)
	require.NoError(t, err)

	assert.Equal(t, "lbw-1", report.ID)
	assert.Equal(t, models.DecisionOut, report.Decision)
	assert.Equal(t, 81.5, report.Confidence)
	assert.Equal(t, "delivery.mp4", report.VideoName)

	require.Len(t, *steps, 2)
	assert.Equal(t, models.Step{Name: "ball_detection", Status: models.StepProcessing}, (*steps)[0])
	assert.Equal(t, models.Step{Name: "ball_detection", Status: models.StepCompleted}, (*steps)[1])
}

func TestAnalyzeStreamSplitAcrossReads(t *testing.T) {
	// The full stream, cut at arbitrary byte positions with a flush after
	// each slice. No slice boundary may corrupt frame decoding.
	full := `data: {"type":"step","step":"preprocessing","status":"processing"}` + "\n\n" +
		`data: {"type":"step","step":"preprocessing","status":"completed"}` + "\n\n" +
		`data: {"type":"result","report":{"id":"lbw-2","decision":"NOT_OUT","confidence":67.2}}` + "\n\n"

	for _, cut := range []int{1, 7, 40, 66, 67, 68, len(full) - 3} {
		t.Run(fmt.Sprintf("cut at %d", cut), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				drainUpload(t, r)
				w.Header().Set("Content-Type", "text/event-stream")
				flusher := w.(http.Flusher)
				fmt.Fprint(w, full[:cut])
				flusher.Flush()
				time.Sleep(10 * time.Millisecond)
				fmt.Fprint(w, full[cut:])
				flusher.Flush()
			}))
			defer srv.Close()

			steps, onStep := collectSteps()
			report, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), onStep)
			require.NoError(t, err)

			assert.Equal(t, "lbw-2", report.ID)
			assert.Equal(t, models.DecisionNotOut, report.Decision)
			assert.Len(t, *steps, 2)
		})
	}
}

func TestAnalyzeStreamTrailingFrame(t *testing.T) {
	// Terminal frame without a closing blank line still resolves at EOF.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drainUpload(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"result","report":{"id":"lbw-3","decision":"OUT","confidence":90}}`)
	}))
	defer srv.Close()

	report, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "lbw-3", report.ID)
}

func TestAnalyzeSingleJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drainUpload(t, r)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result":{"id":"lbw-4","decision":"OUT","confidence":77.0}}`)
	}))
	defer srv.Close()

	steps, onStep := collectSteps()
	report, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), onStep)
	require.NoError(t, err)

	assert.Equal(t, "lbw-4", report.ID)

	// A single JSON answer means the backend ran the whole pipeline; every
	// known stage is reported completed, in order.
	require.Len(t, *steps, len(models.PipelineStages))
	for i, stage := range models.PipelineStages {
		assert.Equal(t, stage, (*steps)[i].Name)
		assert.Equal(t, models.StepCompleted, (*steps)[i].Status)
	}
}

func TestAnalyzeErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drainUpload(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"type":"step","step":"ball_detection","status":"processing"}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"error","message":"no ball detected in footage"}`+"\n\n")
	}))
	defer srv.Close()

	report, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), nil)
	assert.Nil(t, report)

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "no ball detected in footage", analysisErr.Message)
}

func TestAnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "video too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), nil)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, serverErr.StatusCode)
	assert.Contains(t, serverErr.Body, "video too large")
}

func TestAnalyzeEmptyStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), nil)
	assert.ErrorIs(t, err, ErrEmptyStream)
}

func TestAnalyzeIgnoresUnknownFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		drainUpload(t, r)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"type":"telemetry","fps":30}`+"\n\n")
		fmt.Fprint(w, `data: {"type":"result","report":{"id":"lbw-5","decision":"OUT","confidence":70}}`+"\n\n")
	}))
	defer srv.Close()

	steps, onStep := collectSteps()
	report, err := NewClient(srv.URL).Analyze(context.Background(), writeTestVideo(t), models.DefaultMatchConfig(), onStep)
	require.NoError(t, err)
	assert.Equal(t, "lbw-5", report.ID)
	assert.Empty(t, *steps)
}

func TestMapReportFieldNamingVariants(t *testing.T) {
	snake := map[string]any{
		"id": "lbw-9", "video_name": "clip.mp4", "decision": "OUT", "confidence": 88.0,
		"is_umpires_call": true,
		"criteria": map[string]any{
			"pitched_in_line": true, "impact_in_line": true,
			"leg_before_bat": true, "would_hit_wickets": true,
		},
		"ball_metrics": map[string]any{
			"category": "inswing", "release_speed_kmh": 132.4, "impact_speed_kmh": 120.1,
			"swing_deviation_cm": 6.2, "entry_angle_deg": 12.0,
		},
		"pitch_analysis": map[string]any{
			"zone": "inline", "distance_from_leg_stump_cm": 4.2,
			"distance_from_off_stump_cm": -18.6, "bounce_angle_deg": 11.3,
		},
		"impact_analysis": map[string]any{
			"zone": "inline", "height_cm": 42.0, "distance_from_leg_stump_cm": 4.2,
			"is_above_stumps": false, "umpires_call": "CLEAR",
		},
		"wicket_prediction": map[string]any{
			"hitting": true, "stump": "middle", "hit_percentage": 82.0,
			"margin_of_error_cm": 2.1, "umpires_call": "CLEAR",
		},
		"bounce_point": map[string]any{"x": 240.0, "y": 3.1, "z": 0.0},
		"created_at":   "2026-08-01T10:00:00Z",
	}
	camel := map[string]any{
		"id": "lbw-9", "videoName": "clip.mp4", "decision": "OUT", "confidence": 88.0,
		"isUmpiresCall": true,
		"criteria": map[string]any{
			"pitchedInLine": true, "impactInLine": true,
			"legBeforeBat": true, "wouldHitWickets": true,
		},
		"ballMetrics": map[string]any{
			"category": "inswing", "releaseSpeedKmh": 132.4, "impactSpeedKmh": 120.1,
			"swingDeviationCm": 6.2, "entryAngleDeg": 12.0,
		},
		"pitchAnalysis": map[string]any{
			"zone": "inline", "distanceFromLegStumpCm": 4.2,
			"distanceFromOffStumpCm": -18.6, "bounceAngleDeg": 11.3,
		},
		"impactAnalysis": map[string]any{
			"zone": "inline", "heightCm": 42.0, "distanceFromLegStumpCm": 4.2,
			"isAboveStumps": false, "umpiresCall": "CLEAR",
		},
		"wicketPrediction": map[string]any{
			"hitting": true, "stump": "middle", "hitPercentage": 82.0,
			"marginOfErrorCm": 2.1, "umpiresCall": "CLEAR",
		},
		"bouncePoint": map[string]any{"x": 240.0, "y": 3.1, "z": 0.0},
		"createdAt":   "2026-08-01T10:00:00Z",
	}

	a := mapReport(snake)
	b := mapReport(camel)
	assert.Equal(t, a, b, "snake and camel payloads must map identically")

	assert.Equal(t, "lbw-9", a.ID)
	assert.True(t, a.UmpiresCall)
	assert.Equal(t, "inswing", a.BallMetrics.Category)
	assert.Equal(t, 132.4, a.BallMetrics.ReleaseSpeedKmh)
	assert.Equal(t, models.CallClear, a.WicketPrediction.Call)
	require.NotNil(t, a.BouncePoint)
	assert.Equal(t, models.Point3{X: 240.0, Y: 3.1, Z: 0}, *a.BouncePoint)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), a.CreatedAt)
}

func TestMapReportDefaults(t *testing.T) {
	// Minimal payload: every optional field falls back to a safe default.
	r := mapReport(map[string]any{"id": "lbw-min", "decision": "NOT_OUT"})

	assert.Equal(t, "/placeholder", r.Thumbnail)
	assert.Equal(t, models.DecisionNotOut, r.Decision)
	assert.False(t, r.Criteria.WouldHitWickets, "NOT_OUT default criteria must not all be true")
	assert.True(t, r.Criteria.PitchedInLine)
	assert.Len(t, r.Steps, len(models.PipelineStages))
	assert.NotNil(t, r.Trajectory)
	assert.Empty(t, r.Trajectory)
	assert.Nil(t, r.BallMetrics)
	assert.WithinDuration(t, time.Now().UTC(), r.CreatedAt, time.Minute)
}

func TestMapReportClampsConfidence(t *testing.T) {
	assert.Equal(t, 100.0, mapReport(map[string]any{"confidence": 250.0}).Confidence)
	assert.Equal(t, 0.0, mapReport(map[string]any{"confidence": -3.0}).Confidence)
}

func TestMapReportUnknownDecision(t *testing.T) {
	r := mapReport(map[string]any{"decision": "RETIRED_HURT"})
	assert.Equal(t, models.DecisionNotOut, r.Decision)
}

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	httpc := &http.Client{}
	httpmock.ActivateNonDefault(httpc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return NewClient("http://backend.test", WithHTTPClient(httpc))
}

func TestFetchResult(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/result/lbw-7",
		httpmock.NewStringResponder(200, `{"id":"lbw-7","decision":"OUT","confidence":72.5}`))

	report, err := client.FetchResult(context.Background(), "lbw-7")
	require.NoError(t, err)
	assert.Equal(t, "lbw-7", report.ID)
	assert.Equal(t, models.DecisionOut, report.Decision)
}

func TestFetchResultNotFound(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/result/missing",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))

	_, err := client.FetchResult(context.Background(), "missing")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, 404, serverErr.StatusCode)
}

func TestHistory(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/history",
		httpmock.NewStringResponder(200, `[
			{"analysis_id":"lbw-b","video_name":"b.mp4","decision":"OUT","confidence":80,"analyzed_at":"2026-08-02T09:00:00Z"},
			{"analysis_id":"lbw-a","video_name":"a.mp4","decision":"NOT_OUT","confidence":66,"analyzed_at":"2026-08-01T09:00:00Z"}
		]`))

	entries, err := client.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "lbw-b", entries[0].ID)
	assert.Equal(t, models.DecisionOut, entries[0].Decision)
	assert.Equal(t, "/placeholder", entries[0].Thumbnail)
}

func TestHistoryLimit(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/history?limit=5",
		httpmock.NewStringResponder(200, `[]`))

	entries, err := client.History(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestStats(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/stats",
		httpmock.NewStringResponder(200, `{
			"total_analyses": 12, "out_decisions": 7, "not_out_decisions": 5,
			"average_confidence": 74.2,
			"recent_analyses": [{"analysis_id":"lbw-r","decision":"OUT","confidence":80}]
		}`))

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalAnalyses)
	assert.Equal(t, 7, stats.OutDecisions)
	assert.Equal(t, 5, stats.NotOutDecisions)
	assert.Equal(t, 74.2, stats.AverageConfidence)
	require.Len(t, stats.Recent, 1)
	assert.Equal(t, "lbw-r", stats.Recent[0].ID)
}

func TestMetrics(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, "http://backend.test/metrics",
		httpmock.NewStringResponder(200, `{
			"total_analyses": 4,
			"decision_distribution": {"out": 3, "not_out": 1},
			"confidence_distribution": {"90-100": 2, "80-89": 2},
			"impact_zone_distribution": {"inline": 4},
			"pitching_distribution": {"inline": 2, "outside_off": 2},
			"wicket_prediction": {"hitting": 3, "missing": 1},
			"average_processing_time": 2.7
		}`))

	metrics, err := client.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.TotalAnalyses)
	assert.Equal(t, 3, metrics.DecisionDistribution.Out)
	assert.Equal(t, 1, metrics.DecisionDistribution.NotOut)
	assert.Equal(t, 2, metrics.ConfidenceDistribution["90-100"])
	assert.Equal(t, 4, metrics.ImpactZones["inline"])
	assert.Equal(t, 3, metrics.WicketPrediction.Hitting)
	assert.Equal(t, 2.7, metrics.AverageProcessingSec)
}

func TestDelete(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodDelete, "http://backend.test/result/lbw-d",
		httpmock.NewStringResponder(200, `{"success":true}`))
	httpmock.RegisterResponder(http.MethodDelete, "http://backend.test/result/gone",
		httpmock.NewStringResponder(404, `{"error":"not found"}`))

	ok, err := client.Delete(context.Background(), "lbw-d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	client := NewClient(srv.URL)
	assert.True(t, client.Health(context.Background()))

	srv.Close()
	assert.False(t, client.Health(context.Background()))
}

func TestHealthUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	start := time.Now()
	ok := client.Health(context.Background())
	assert.False(t, ok)
	assert.Less(t, time.Since(start), HealthTimeout, "probe must respect its deadline")
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://x.test", NewClient("http://x.test///").BaseURL())
}

func TestServerErrorMessage(t *testing.T) {
	err := &ServerError{StatusCode: 500, Body: "boom"}
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
	assert.True(t, errors.As(error(err), new(*ServerError)))
}
