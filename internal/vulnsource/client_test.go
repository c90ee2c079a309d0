package vulnsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c := New(config.OracleConfig{BaseURL: url, TimeoutSeconds: 5})
	c.baseBackoff = time.Millisecond
	return c
}

func TestLookupSeverityBucketing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"coordinates": "pkg:npm/lodash@4.17.0",
			"vulnerabilities": [
				{"title": "proto pollution", "cvssScore": 7.0, "cve": "CVE-2019-10744"},
				{"title": "redos medium", "cvssScore": 4.0},
				{"title": "redos low", "cvssScore": 3.9},
				{"title": "unscored"}
			]
		}]`))
	}))
	defer srv.Close()

	findings := newTestClient(t, srv.URL).Lookup(context.Background(), "lodash", "4.17.0", models.EcosystemNPM)
	if len(findings) != 4 {
		t.Fatalf("expected 4 findings, got %d", len(findings))
	}
	want := []models.SeverityLevel{
		models.SeverityHigh,
		models.SeverityMedium,
		models.SeverityLow,
		models.SeverityUnknown,
	}
	for i, w := range want {
		if findings[i].Severity != w {
			t.Fatalf("finding %d: expected %s, got %s", i, w, findings[i].Severity)
		}
	}
	if findings[0].CVE != "CVE-2019-10744" {
		t.Fatalf("cve not carried through: %+v", findings[0])
	}
}

func TestLookupRetriesExactlyFourTimesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	findings := newTestClient(t, srv.URL).Lookup(context.Background(), "lodash", "4.17.0", models.EcosystemNPM)

	if n := atomic.LoadInt32(&calls); n != 4 {
		t.Fatalf("expected exactly 4 attempts (initial + 3 retries), got %d", n)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one synthetic finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Title != models.TitleScanError || f.Severity != models.SeverityUnknown {
		t.Fatalf("expected UNKNOWN Scan Error finding, got %+v", f)
	}
}

func TestLookupServerErrorRetriesThenDegrades(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	findings := newTestClient(t, srv.URL).Lookup(context.Background(), "Flask", "2.2.0", models.EcosystemPyPI)
	if atomic.LoadInt32(&calls) != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
	if len(findings) != 1 || !findings[0].IsSynthetic() {
		t.Fatalf("expected synthetic finding, got %+v", findings)
	}
}

func TestLookupClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	findings := newTestClient(t, srv.URL).Lookup(context.Background(), "lodash", "4.17.0", models.EcosystemNPM)
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("400 must not be retried; got %d attempts", calls)
	}
	if len(findings) != 1 || findings[0].Severity != models.SeverityUnknown {
		t.Fatalf("expected UNKNOWN scan-error finding, got %+v", findings)
	}
}

func TestLookupMalformedAndEmptyResponses(t *testing.T) {
	cases := map[string]string{
		"not an array": `{"oops": true}`,
		"empty array":  `[]`,
	}
	for name, body := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		findings := newTestClient(t, srv.URL).Lookup(context.Background(), "lodash", "4.17.0", models.EcosystemNPM)
		srv.Close()

		if len(findings) != 1 || findings[0].Title != models.TitleScanError {
			t.Fatalf("%s: expected one Scan Error finding, got %+v", name, findings)
		}
	}
}

func TestLookupEnforcesMinimumDelayBetweenCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"coordinates": "x", "vulnerabilities": []}]`))
	}))
	defer srv.Close()

	c := New(config.OracleConfig{BaseURL: srv.URL, TimeoutSeconds: 5, MinDelayMillis: 60})
	ctx := context.Background()

	start := time.Now()
	c.Lookup(ctx, "a", "1.0.0", models.EcosystemNPM)
	c.Lookup(ctx, "b", "1.0.0", models.EcosystemNPM)
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("second call ran after only %v; expected the fixed inter-call delay", elapsed)
	}
}
