package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type readyReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewBaseMuxWithReady serves /healthz and /readyz. Ready checks run in
// parallel, each bounded by a two second timeout.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		report, ok := runChecks(r.Context(), checks)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) (readyReport, bool) {
	report := readyReport{Status: "ok", Checks: map[string]string{}}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		name := check.Name
		if name == "" {
			name = "dependency"
		}
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			result := "ok"
			if err := fn(cctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			report.Checks[name] = result
			if result != "ok" {
				report.Status = "unavailable"
			}
			mu.Unlock()
		}(name, check.Check)
	}
	wg.Wait()
	return report, report.Status == "ok"
}
