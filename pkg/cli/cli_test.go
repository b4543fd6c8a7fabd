package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/gt"
	"github.com/pulsekit/healthmem/pkg/cli"
)

type storedMemory struct {
	ID       string         `json:"id"`
	Memory   string         `json:"memory"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// memoryServer emulates the remote memory service
type memoryServer struct {
	mu       sync.Mutex
	seq      int
	memories []storedMemory
	requests int
}

func (s *memoryServer) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			s.requests++
			s.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})

	r.Post("/v1/memories/", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
			UserID   string         `json:"user_id"`
			Metadata map[string]any `json:"metadata"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
			http.Error(w, `{"detail":"bad request"}`, http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		s.seq++
		m := storedMemory{
			ID:       "mem-" + strconv.Itoa(s.seq),
			Memory:   body.Messages[0].Content,
			UserID:   body.UserID,
			Metadata: body.Metadata,
		}
		s.memories = append(s.memories, m)
		s.mu.Unlock()

		_ = json.NewEncoder(w).Encode([]storedMemory{m})
	})

	r.Post("/v1/memories/search/", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			UserID  string         `json:"user_id"`
			Filters map[string]any `json:"filters"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		category, _ := body.Filters["category"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"results": s.find(body.UserID, category)})
	})

	r.Get("/v1/memories/", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		_ = json.NewEncoder(w).Encode(s.find(q.Get("user_id"), q.Get("category")))
	})

	r.Delete("/v1/memories/{id}/", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, m := range s.memories {
			if m.ID == id {
				s.memories = append(s.memories[:i], s.memories[i+1:]...)
				_, _ = w.Write([]byte(`{"message":"Memory deleted successfully"}`))
				return
			}
		}
		http.Error(w, `{"detail":"Memory not found"}`, http.StatusNotFound)
	})

	return r
}

func (s *memoryServer) find(userID, category string) []storedMemory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []storedMemory{}
	for _, m := range s.memories {
		if m.UserID != userID {
			continue
		}
		if category != "" && m.Metadata["category"] != category {
			continue
		}
		m.Score = 0.5
		out = append(out, m)
	}
	return out
}

func (s *memoryServer) seed(userID, text string, metadata map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.memories = append(s.memories, storedMemory{
		ID:       "seed-" + strconv.Itoa(s.seq),
		Memory:   text,
		UserID:   userID,
		Metadata: metadata,
	})
}

func (s *memoryServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

func setup(t *testing.T) (*memoryServer, []string) {
	t.Helper()
	srv := &memoryServer{}
	ts := httptest.NewServer(srv.handler())
	t.Cleanup(ts.Close)

	return srv, []string{
		"--memory-api-key", "test-key",
		"--memory-base-url", ts.URL,
		"--memory-retry-delay", "1ms",
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"healthmem", "--log-level", "error"}, args...)
	err := cli.RunWithWriter(context.Background(), argv, "test", &out)
	return out.String(), err
}

func TestRun_Health(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		out, err := runApp(t, "health", "--memory-api-key", "")
		gt.NoError(t, err).Required()

		var report map[string]any
		gt.NoError(t, json.Unmarshal([]byte(out), &report)).Required()
		gt.V(t, report["available"]).Equal(false)
		gt.V(t, report["configured"]).Equal(false)
		gt.V(t, report["state"]).Equal("unavailable")
	})

	t.Run("configured", func(t *testing.T) {
		srv, flags := setup(t)
		out, err := runApp(t, append([]string{"health"}, flags...)...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains(`"available": true`)
		gt.V(t, srv.requestCount()).Equal(0)
	})
}

func TestRun_Add(t *testing.T) {
	t.Run("stores sanitized memory", func(t *testing.T) {
		srv, flags := setup(t)
		args := append([]string{"add",
			"--owner", "user-1",
			"--text", "Slept 7 hours",
			"--category", "recovery.sleep",
			"--source", "device_sync",
			"--field", "hours=7",
			"--field", "quality_score=8",
			"--field", "email=someone@example.com",
			"--tag", "manual",
		}, flags...)

		out, err := runApp(t, args...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains(`"memoryId": "mem-1"`)

		stored := srv.find("user-1", "recovery.sleep")
		gt.A(t, stored).Length(1).Required()
		ms, ok := stored[0].Metadata["moduleSpecific"].(map[string]any)
		gt.B(t, ok).True()
		gt.V(t, ms["hours"]).Equal(float64(7))
		_, hasEmail := ms["email"]
		gt.B(t, hasEmail).False()
		gt.V(t, stored[0].Metadata["confidence"]).Equal(0.9)
	})

	t.Run("invalid category never reaches the backend", func(t *testing.T) {
		srv, flags := setup(t)
		args := append([]string{"add", "--owner", "user-1", "--text", "x", "--category", "invalid.category"}, flags...)

		_, err := runApp(t, args...)
		gt.Error(t, err)
		gt.V(t, srv.requestCount()).Equal(0)
	})

	t.Run("metadata json", func(t *testing.T) {
		srv, flags := setup(t)
		args := append([]string{"add",
			"--owner", "user-1",
			"--text", "Reported stress level 8/10",
			"--metadata-json", `{"category":"recovery.stress","source":"user_input","moduleSpecific":{"stress_score":8}}`,
		}, flags...)

		_, err := runApp(t, args...)
		gt.NoError(t, err).Required()
		gt.A(t, srv.find("user-1", "recovery.stress")).Length(1)
	})

	t.Run("unavailable store is reported", func(t *testing.T) {
		_, err := runApp(t, "add", "--owner", "user-1", "--text", "x", "--memory-api-key", "")
		gt.Error(t, err)
	})
}

func TestRun_Record(t *testing.T) {
	t.Run("duplicate event is skipped", func(t *testing.T) {
		srv, flags := setup(t)
		args := append([]string{"record",
			"--owner", "user-1",
			"--event", "sleep",
			"--event-json", `{"hours": 7, "quality_score": 8}`,
		}, flags...)

		out, err := runApp(t, args...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains(`"recorded": true`)
		gt.S(t, out).Contains(`"memoryId": "mem-1"`)
		// duplicate search then create
		gt.V(t, srv.requestCount()).Equal(2)

		stored := srv.find("user-1", "recovery.sleep")
		gt.A(t, stored).Length(1).Required()
		ms, ok := stored[0].Metadata["moduleSpecific"].(map[string]any)
		gt.B(t, ok).True().Required()
		gt.V(t, ms["hours"]).Equal(float64(7))
		gt.V(t, stored[0].Metadata["source"]).Equal("device_sync")

		out, err = runApp(t, args...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains(`"duplicate": true`)
		gt.V(t, srv.requestCount()).Equal(3)
		gt.A(t, srv.find("user-1", "")).Length(1)
	})

	t.Run("different fields are recorded", func(t *testing.T) {
		srv, flags := setup(t)
		for _, payload := range []string{`{"hours": 7}`, `{"hours": 5}`} {
			_, err := runApp(t, append([]string{"record", "--owner", "user-1", "--event", "sleep", "--event-json", payload}, flags...)...)
			gt.NoError(t, err).Required()
		}
		gt.A(t, srv.find("user-1", "recovery.sleep")).Length(2)
	})

	t.Run("async waits before exit", func(t *testing.T) {
		srv, flags := setup(t)
		args := append([]string{"record",
			"--owner", "user-1",
			"--event", "stress",
			"--event-json", `{"stress_score": 8, "trigger": "deadline"}`,
			"--async",
		}, flags...)

		out, err := runApp(t, args...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains(`"queued": true`)
		gt.A(t, srv.find("user-1", "recovery.stress")).Length(1)
	})

	rejected := []struct {
		name string
		args []string
	}{
		{"unknown kind", []string{"--event", "nap"}},
		{"unknown field", []string{"--event", "sleep", "--event-json", `{"hours": 7, "mood": "good"}`}},
		{"malformed payload", []string{"--event", "meal", "--event-json", `{"calories":`}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			srv, flags := setup(t)
			args := append([]string{"record", "--owner", "user-1"}, tt.args...)
			_, err := runApp(t, append(args, flags...)...)
			gt.Error(t, err)
			gt.V(t, srv.requestCount()).Equal(0)
		})
	}
}

func TestRun_Insights(t *testing.T) {
	srv, flags := setup(t)
	sleep := func(h float64) map[string]any {
		return map[string]any{"category": "recovery.sleep", "source": "device_sync", "moduleSpecific": map[string]any{"hours": h, "quality_score": 5}}
	}
	training := func(rpe float64) map[string]any {
		return map[string]any{"category": "fitness.training", "source": "device_sync", "moduleSpecific": map[string]any{"workout_type": "hiit", "duration_mins": 45, "rpe": rpe}}
	}
	srv.seed("user-1", "Slept 5.5 hours", sleep(5.5))
	srv.seed("user-1", "Slept 5.5 hours again", sleep(5.5))
	srv.seed("user-1", "HIIT session", training(8.5))
	srv.seed("user-1", "Another HIIT session", training(8.5))

	t.Run("text", func(t *testing.T) {
		out, err := runApp(t, append([]string{"insights", "--owner", "user-1"}, flags...)...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("[WARNING] Recovery Risk")
		gt.S(t, out).Contains("deload_week")
	})

	t.Run("json", func(t *testing.T) {
		out, err := runApp(t, append([]string{"insights", "--owner", "user-1", "--json"}, flags...)...)
		gt.NoError(t, err).Required()

		var insights []map[string]any
		gt.NoError(t, json.Unmarshal([]byte(out), &insights)).Required()
		gt.A(t, insights).Length(1).Required()
		gt.V(t, insights[0]["title"]).Equal("Recovery Risk")
	})

	t.Run("nothing to report", func(t *testing.T) {
		out, err := runApp(t, append([]string{"insights", "--owner", "user-2"}, flags...)...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("No insights available")
	})

	t.Run("custom rules", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.toml")
		rules := `
[[rule]]
name = "any-training"
type = "suggestion"
title = "Training Logged"
message = "Intensity {avg_workout_intensity}"

  [[rule.trend]]
  key = "avg_workout_intensity"
  op = ">"
  value = 0.0
`
		gt.NoError(t, os.WriteFile(path, []byte(rules), 0o600)).Required()

		out, err := runApp(t, append([]string{"insights", "--owner", "user-1", "--rules", path}, flags...)...)
		gt.NoError(t, err).Required()
		gt.S(t, out).Contains("Training Logged")
		gt.S(t, out).Contains("Intensity 8.5")
	})

	t.Run("broken rules file", func(t *testing.T) {
		_, err := runApp(t, append([]string{"insights", "--owner", "user-1", "--rules", filepath.Join(t.TempDir(), "missing.toml")}, flags...)...)
		gt.Error(t, err)
	})
}

func TestRun_Context(t *testing.T) {
	srv, flags := setup(t)
	srv.seed("user-1", "Ate lunch (600 kcal) - adhered to meal plan", map[string]any{
		"category": "nutrition.intake", "source": "user_input",
		"moduleSpecific": map[string]any{"meal_type": "lunch", "calories": 600, "plan_adherence": "adhered"},
	})

	t.Run("nutrition plan", func(t *testing.T) {
		out, err := runApp(t, append([]string{"context", "--owner", "user-1", "--intent", "nutrition_plan"}, flags...)...)
		gt.NoError(t, err).Required()

		var pack map[string]any
		gt.NoError(t, json.Unmarshal([]byte(out), &pack)).Required()
		gt.V(t, pack["intent"]).Equal("nutrition_plan")
		trends, ok := pack["trends"].(map[string]any)
		gt.B(t, ok).True()
		gt.V(t, trends["plan_adherence_percent"]).Equal(float64(100))
	})

	t.Run("unknown intent", func(t *testing.T) {
		_, err := runApp(t, append([]string{"context", "--owner", "user-1", "--intent", "weekly"}, flags...)...)
		gt.Error(t, err)
	})
}

func TestRun_Cleanup(t *testing.T) {
	srv, flags := setup(t)
	srv.seed("user-1", "Old entry", map[string]any{
		"category": "user.defined", "source": "user_input", "confidence": 0.95,
		"timestamp": "2019-01-01T00:00:00.000Z", "moduleSpecific": map[string]any{},
	})
	srv.seed("user-1", "Doubtful entry", map[string]any{
		"category": "user.defined", "source": "system_generated", "confidence": 0.4,
		"timestamp": "2099-01-01T00:00:00.000Z", "moduleSpecific": map[string]any{},
	})
	srv.seed("user-1", "Keep me", map[string]any{
		"category": "user.defined", "source": "user_input", "confidence": 0.95,
		"timestamp": "2099-01-01T00:00:00.000Z", "moduleSpecific": map[string]any{},
	})

	out, err := runApp(t, append([]string{"cleanup", "--owner", "user-1"}, flags...)...)
	gt.NoError(t, err).Required()

	var result map[string]any
	gt.NoError(t, json.Unmarshal([]byte(out), &result)).Required()
	gt.V(t, result["deleted"]).Equal(float64(2))
	gt.V(t, result["failed"]).Equal(float64(0))

	remaining := srv.find("user-1", "")
	gt.A(t, remaining).Length(1).Required()
	gt.V(t, remaining[0].Memory).Equal("Keep me")

	t.Run("unknown mode", func(t *testing.T) {
		_, err := runApp(t, append([]string{"cleanup", "--owner", "user-1", "--mode", "everything"}, flags...)...)
		gt.Error(t, err)
	})
}

func TestParseFields(t *testing.T) {
	ms, err := cli.ParseFields([]string{"hours=7.5", "workout_type=strength", "note=a=b"})
	gt.NoError(t, err).Required()
	gt.V(t, ms["hours"]).Equal(7.5)
	gt.V(t, ms["workout_type"]).Equal("strength")
	gt.V(t, ms["note"]).Equal("a=b")

	_, err = cli.ParseFields([]string{"novalue"})
	gt.Error(t, err)
	_, err = cli.ParseFields([]string{"=7"})
	gt.Error(t, err)
}
