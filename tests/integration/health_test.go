//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/livez", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			resp := doGet(t, path)
			defer resp.Body.Close()
			expectStatus(t, resp, http.StatusOK)

			body := decodeJSON[healthResponse](t, resp)
			if body.Status != "ok" {
				t.Fatalf("expected status ok, got %q (checks: %v)", body.Status, body.Checks)
			}
		})
	}
}

// Only failing checks are listed, and the compose stack configures no
// optional backends that could degrade readiness.
func TestReadyz_NoFailingChecks(t *testing.T) {
	resp := doGet(t, "/readyz")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	body := decodeJSON[healthResponse](t, resp)
	if len(body.Checks) != 0 {
		t.Fatalf("expected no failing checks, got %v", body.Checks)
	}
}
