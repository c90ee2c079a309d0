package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patchwatch/patchwatch/internal/config"
	"github.com/patchwatch/patchwatch/models"
	"github.com/sony/gobreaker"
)

const (
	defaultNPMBase   = "https://registry.npmjs.org"
	defaultPyPIBase  = "https://pypi.org/pypi"
	defaultMavenBase = "https://search.maven.org/solrsearch/select"
)

// VersionSource lists all published version strings for a package.
type VersionSource interface {
	Versions(ctx context.Context, eco models.Ecosystem, name string) ([]string, error)
}

// VersionLister implements VersionSource against the public registries. Calls
// run through a circuit breaker so a flapping registry stops being hammered
// mid-scan.
type VersionLister struct {
	http      *http.Client
	cb        *gobreaker.CircuitBreaker
	npmBase   string
	pypiBase  string
	mavenBase string
}

// NewVersionLister builds a VersionLister from configuration.
func NewVersionLister(cfg config.RegistryConfig) *VersionLister {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "package-registry",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &VersionLister{
		http:      &http.Client{Timeout: timeout},
		cb:        cb,
		npmBase:   defaultNPMBase,
		pypiBase:  defaultPyPIBase,
		mavenBase: defaultMavenBase,
	}
}

// Versions fetches the published version list for name in eco.
func (l *VersionLister) Versions(ctx context.Context, eco models.Ecosystem, name string) ([]string, error) {
	result, err := l.cb.Execute(func() (interface{}, error) {
		switch eco {
		case models.EcosystemNPM:
			return l.npmVersions(ctx, name)
		case models.EcosystemPyPI:
			return l.pypiVersions(ctx, name)
		case models.EcosystemMaven:
			return l.mavenVersions(ctx, name)
		default:
			return nil, fmt.Errorf("no registry for ecosystem %q", eco)
		}
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (l *VersionLister) getJSON(ctx context.Context, reqURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("registry HTTP %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decoding registry response: %w", err)
	}
	return nil
}

func (l *VersionLister) npmVersions(ctx context.Context, name string) ([]string, error) {
	var doc struct {
		Versions map[string]json.RawMessage `json:"versions"`
	}
	if err := l.getJSON(ctx, l.npmBase+"/"+url.PathEscape(name), &doc); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	return versions, nil
}

func (l *VersionLister) pypiVersions(ctx context.Context, name string) ([]string, error) {
	var doc struct {
		Releases map[string]json.RawMessage `json:"releases"`
	}
	if err := l.getJSON(ctx, l.pypiBase+"/"+url.PathEscape(name)+"/json", &doc); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(doc.Releases))
	for v := range doc.Releases {
		versions = append(versions, v)
	}
	return versions, nil
}

// mavenVersions queries the Maven Central search API with the gav core so
// every published version of group:artifact comes back as one doc.
func (l *VersionLister) mavenVersions(ctx context.Context, name string) ([]string, error) {
	group, artifact, ok := strings.Cut(name, ":")
	if !ok {
		return nil, fmt.Errorf("maven package name %q is not group:artifact", name)
	}

	q := url.Values{}
	q.Set("q", fmt.Sprintf(`g:%q AND a:%q`, group, artifact))
	q.Set("core", "gav")
	q.Set("rows", "200")
	q.Set("wt", "json")

	var doc struct {
		Response struct {
			Docs []struct {
				V string `json:"v"`
			} `json:"docs"`
		} `json:"response"`
	}
	if err := l.getJSON(ctx, l.mavenBase+"?"+q.Encode(), &doc); err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(doc.Response.Docs))
	for _, d := range doc.Response.Docs {
		versions = append(versions, d.V)
	}
	return versions, nil
}
