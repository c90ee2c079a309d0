// Package vulnsource wraps the vulnerability oracle: a component-report
// service queried with package-url coordinates.
package vulnsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
)

// maxRetries is the number of retries after the initial attempt for
// rate-limited, server-error, and network failures.
const maxRetries = 3

// Client is an HTTP client for the vulnerability oracle. It enforces a fixed
// minimum delay between consecutive calls so sequential scans stay under the
// oracle's rate limit; that throttle is part of the client, not a per-call
// option.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	minDelay    time.Duration
	baseBackoff time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// New builds a Client from configuration.
func New(cfg config.OracleConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	minDelay := time.Duration(cfg.MinDelayMillis) * time.Millisecond
	base := cfg.BaseURL
	if base == "" {
		base = config.DefaultOracleURL
	}
	return &Client{
		baseURL:     base,
		token:       cfg.Token,
		http:        &http.Client{Timeout: timeout},
		minDelay:    minDelay,
		baseBackoff: time.Second,
	}
}

type coordinateRequest struct {
	Coordinates []string `json:"coordinates"`
}

type componentReport struct {
	Coordinates     string             `json:"coordinates"`
	Vulnerabilities []oracleVulnerable `json:"vulnerabilities"`
}

type oracleVulnerable struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CVSSScore   *float64 `json:"cvssScore"`
	CVE         string   `json:"cve"`
	Reference   string   `json:"reference"`
}

// Lookup queries the oracle for one dependency. It never returns an error:
// on exhausted retries or an unexpected response shape it degrades to a
// single synthetic UNKNOWN-severity "Scan Error" finding, which callers must
// treat as "assume vulnerable, flag for manual review".
func (c *Client) Lookup(ctx context.Context, name, version string, eco models.Ecosystem) []models.VulnerabilityFinding {
	purl := models.PURL(eco, name, version)

	if err := c.throttle(ctx); err != nil {
		return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version, err.Error())}
	}

	body, err := json.Marshal(coordinateRequest{Coordinates: []string{purl}})
	if err != nil {
		return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version, fmt.Sprintf("encoding request: %v", err))}
	}

	var lastFailure string
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version, fmt.Sprintf("building request: %v", err))}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Basic "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastFailure = fmt.Sprintf("oracle unreachable: %v", err)
			if attempt <= maxRetries {
				if serr := c.backoff(ctx, attempt); serr != nil {
					break
				}
				continue
			}
			break
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if readErr != nil {
				return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version, fmt.Sprintf("reading oracle response: %v", readErr))}
			}
			return c.parseReport(name, version, respBody)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastFailure = fmt.Sprintf("oracle HTTP %d", resp.StatusCode)
			if attempt <= maxRetries {
				slog.Warn("oracle request failed; retrying",
					"coordinate", purl,
					"status", resp.StatusCode,
					"attempt", attempt,
					"max_attempts", maxRetries+1,
				)
				if serr := c.backoff(ctx, attempt); serr != nil {
					break
				}
				continue
			}
		default:
			// Client errors other than 429 are not retried.
			return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version,
				fmt.Sprintf("oracle HTTP %d: %s", resp.StatusCode, string(respBody)))}
		}
		break
	}

	slog.Warn("oracle lookup degraded to scan-error finding",
		"coordinate", purl, "reason", lastFailure)
	return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version, lastFailure)}
}

// parseReport converts the oracle response body into findings. A body that is
// not an array, or an empty array where one report was expected, is treated
// like a failed call.
func (c *Client) parseReport(name, version string, body []byte) []models.VulnerabilityFinding {
	var reports []componentReport
	if err := json.Unmarshal(body, &reports); err != nil {
		return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version,
			fmt.Sprintf("unexpected oracle response shape: %v", err))}
	}
	if len(reports) == 0 {
		return []models.VulnerabilityFinding{models.ScanErrorFinding(name, version,
			"oracle returned no component report for coordinate")}
	}

	var findings []models.VulnerabilityFinding
	for _, rep := range reports {
		for _, v := range rep.Vulnerabilities {
			findings = append(findings, models.VulnerabilityFinding{
				Package:     name,
				Version:     version,
				Severity:    models.SeverityFromScore(v.CVSSScore),
				Title:       v.Title,
				Description: v.Description,
				CVE:         v.CVE,
				Reference:   v.Reference,
			})
		}
	}
	return findings
}

// throttle blocks until at least minDelay has passed since the previous call.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := c.minDelay - time.Since(c.lastCall)
	c.lastCall = time.Now().Add(max(wait, 0))
	c.mu.Unlock()

	return sleepWithContext(ctx, wait)
}

// backoff sleeps attempt × baseBackoff (linear, not exponential).
func (c *Client) backoff(ctx context.Context, attempt int) error {
	return sleepWithContext(ctx, time.Duration(attempt)*c.baseBackoff)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
