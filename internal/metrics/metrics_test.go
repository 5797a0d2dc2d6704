package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/dgnsrekt/aural-odyssey/internal/speech"
)

// counter returns the value of a gathered counter with the given labels.
func counter(t *testing.T, r *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := make(map[string]string)
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.UtteranceIssued("story")
	r.UtteranceIssued("story")
	r.UtteranceIssued("responder")
	r.EngineError("story", speech.ReasonAudioBusy)
	r.EngineError("story", speech.ReasonNone)
	r.NarrationCompleted("story")
	r.StaleEvent("story")

	tests := []struct {
		metric string
		labels map[string]string
		want   float64
	}{
		{"aural_odyssey_utterances_issued_total", map[string]string{"controller": "story"}, 2},
		{"aural_odyssey_utterances_issued_total", map[string]string{"controller": "responder"}, 1},
		{"aural_odyssey_engine_errors_total", map[string]string{"controller": "story", "reason": "audio-busy"}, 1},
		{"aural_odyssey_engine_errors_total", map[string]string{"controller": "story", "reason": "none"}, 1},
		{"aural_odyssey_narrations_completed_total", map[string]string{"controller": "story"}, 1},
		{"aural_odyssey_stale_events_total", map[string]string{"controller": "story"}, 1},
	}

	for _, tt := range tests {
		if got := counter(t, r, tt.metric, tt.labels); got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.metric, tt.labels, got, tt.want)
		}
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.NarrationCompleted("story")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	want := `aural_odyssey_narrations_completed_total{controller="story"} 1`
	if !slices.Contains(strings.Split(string(body), "\n"), want) {
		t.Errorf("metrics output missing %q", want)
	}
}
