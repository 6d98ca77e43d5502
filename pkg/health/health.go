// Package health provides Kubernetes-style liveness and readiness probes.
//
// Each registered check runs in its own goroutine at a fixed interval. A
// check flips to unhealthy after FailureThreshold consecutive failures and
// back after SuccessThreshold consecutive successes.
//
// Readiness checks are either critical or optional. A failing optional check
// reports the service as degraded but keeps it ready, which suits
// best-effort dependencies such as a reporting mirror or a message broker.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Check describes one probe.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
	// Optional readiness checks degrade the service instead of failing it.
	Optional bool
	// FailureThreshold defaults to 3.
	FailureThreshold int
	// SuccessThreshold defaults to 1.
	SuccessThreshold int
}

// check holds the runtime state of a Check. run is called from exactly one
// goroutine, so the counters need no synchronization. healthy and lastErr
// are read by HTTP handlers.
type check struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func newCheck(c Check) *check {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	ch := &check{Check: c}
	ch.healthy.Store(true)
	return ch
}

func (c *check) isHealthy() bool {
	return c.healthy.Load()
}

func (c *check) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *check) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	err := c.Func(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.FailureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= c.SuccessThreshold {
		c.healthy.Store(true)
	}
}

// Health manages liveness and readiness checks for a service.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a critical liveness check.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.AddLiveness(Check{Name: name, Timeout: timeout, Func: fn})
}

// AddReadinessCheck registers a critical readiness check.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.AddReadiness(Check{Name: name, Timeout: timeout, Func: fn})
}

// AddLiveness registers a liveness check. Optional is ignored.
func (h *Health) AddLiveness(c Check) {
	c.Optional = false
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(c))
}

// AddReadiness registers a readiness check.
func (h *Health) AddReadiness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(c))
}

// Start runs every registered check at the given interval until Stop or ctx
// cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, c := range checks {
		go runCheck(ctx, c, interval)
	}
}

func runCheck(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag, cleared during graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every critical
// readiness check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	return h.readinessReport().status != StatusUnhealthy
}

// Status is the overall outcome of a probe.
type Status string

const (
	StatusOK        Status = "ok"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type report struct {
	status Status
	checks map[string]string
}

func (h *Health) snapshot(live bool) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if live {
		return slices.Clone(h.liveness)
	}
	return slices.Clone(h.readiness)
}

func (h *Health) readinessReport() report {
	return evaluate(h.snapshot(false))
}

// evaluate reports failing checks by name, using the last stored error.
func evaluate(checks []*check) report {
	r := report{status: StatusOK, checks: map[string]string{}}
	for _, c := range checks {
		if c.isHealthy() {
			continue
		}
		msg := "check is unhealthy"
		if err := c.lastError(); err != nil {
			msg = err.Error()
		}
		r.checks[c.Name] = msg
		switch {
		case !c.Optional:
			r.status = StatusUnhealthy
		case r.status == StatusOK:
			r.status = StatusDegraded
		}
	}
	return r
}

// LiveEndpoint serves /livez: 200 unless a liveness check fails.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, evaluate(h.snapshot(true)))
}

// ReadyEndpoint serves /readyz: 200 when marked ready and no critical
// readiness check fails. Degraded services stay at 200.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	r := h.readinessReport()
	if !h.ready.Load() {
		r.status = StatusUnhealthy
		r.checks["_readiness"] = "service is not ready"
	}
	writeReport(w, r)
}

func writeReport(w http.ResponseWriter, r report) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(r.status))
	if len(r.checks) > 0 {
		names := make([]string, 0, len(r.checks))
		for name := range r.checks {
			names = append(names, name)
		}
		slices.Sort(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(r.checks[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	status := http.StatusOK
	if r.status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
