package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glimmervoice/glimmer/internal/convo"
	"github.com/glimmervoice/glimmer/internal/health"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func mux(h *health.Handler) *http.ServeMux {
	m := http.NewServeMux()
	h.Register(m)
	return m
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := health.New(nil)
	rec := get(t, mux(h), "/healthz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestReadyz_AllChecksPass(t *testing.T) {
	h := health.New(nil,
		health.Checker{Name: "tts", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "llm", Check: func(context.Context) error { return nil }},
	)
	rec := get(t, mux(h), "/readyz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q", body.Status)
	}
	if body.Checks["tts"] != "ok" || body.Checks["llm"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	h := health.New(nil,
		health.Checker{Name: "tts", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "llm", Check: func(context.Context) error { return errors.New("timeout") }},
	)
	rec := get(t, mux(h), "/readyz")

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status field = %q", body.Status)
	}
	if !strings.Contains(body.Checks["llm"], "timeout") {
		t.Errorf("llm check = %q", body.Checks["llm"])
	}
}

func TestReadyz_CheckReceivesDeadline(t *testing.T) {
	h := health.New(nil, health.Checker{Name: "slow", Check: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}})
	rec := get(t, mux(h), "/readyz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (check should see a deadline)", rec.Code)
	}
}

func TestStatusz_ReportsPipelineSnapshot(t *testing.T) {
	h := health.New(func() any {
		return convo.Stats{Turns: 3, LastTimeToFirstAudio: 850 * time.Millisecond}
	})
	rec := get(t, mux(h), "/statusz")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stats convo.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.Turns != 3 || stats.LastTimeToFirstAudio != 850*time.Millisecond {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStatusz_NilStatusFunc(t *testing.T) {
	h := health.New(nil)
	rec := get(t, mux(h), "/statusz")

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
