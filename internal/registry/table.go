// Package registry resolves the target secure version for a dependency,
// either from a static table or by querying the ecosystem's package registry.
package registry

import (
	"fmt"
	"os"

	"github.com/patchwatch/patchwatch/models"
	"go.yaml.in/yaml/v3"
)

// defaultSecureVersions is the built-in table of known-good versions for the
// supported package set. Entries can be overridden or extended from a YAML
// file (see LoadTable).
var defaultSecureVersions = map[models.Ecosystem]map[string]string{
	models.EcosystemNPM: {
		"lodash":     "4.17.21",
		"axios":      "0.21.4",
		"minimist":   "1.2.8",
		"node-fetch": "2.6.7",
		"express":    "4.18.2",
		"jquery":     "3.6.4",
	},
	models.EcosystemPyPI: {
		"Flask":    "2.2.3",
		"django":   "3.2.18",
		"requests": "2.31.0",
		"urllib3":  "1.26.18",
		"pyyaml":   "6.0.1",
		"jinja2":   "3.1.3",
	},
	models.EcosystemMaven: {
		"com.fasterxml.jackson.core:jackson-databind": "2.12.7",
		"org.apache.logging.log4j:log4j-core":         "2.17.1",
		"org.springframework:spring-core":             "5.3.27",
		"commons-io:commons-io":                       "2.11.0",
		"com.google.guava:guava":                      "32.0.1",
	},
}

// Table maps package names to their designated secure version, per ecosystem.
type Table struct {
	versions map[models.Ecosystem]map[string]string
}

// NewTable returns a Table seeded with the built-in defaults.
func NewTable() *Table {
	t := &Table{versions: make(map[models.Ecosystem]map[string]string)}
	for eco, pkgs := range defaultSecureVersions {
		m := make(map[string]string, len(pkgs))
		for k, v := range pkgs {
			m[k] = v
		}
		t.versions[eco] = m
	}
	return t
}

// tableFile is the YAML override shape: ecosystem → package → version.
type tableFile map[string]map[string]string

// LoadTable returns the defaults merged with overrides from the YAML file at
// path. An empty path returns just the defaults.
func LoadTable(path string) (*Table, error) {
	t := NewTable()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secure-version table: %w", err)
	}
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing secure-version table %s: %w", path, err)
	}

	for eco, pkgs := range file {
		dst, ok := t.versions[models.Ecosystem(eco)]
		if !ok {
			dst = make(map[string]string, len(pkgs))
			t.versions[models.Ecosystem(eco)] = dst
		}
		for name, version := range pkgs {
			dst[name] = version
		}
	}
	return t, nil
}

// Lookup returns the secure version for a package, if the table knows it.
func (t *Table) Lookup(eco models.Ecosystem, name string) (string, bool) {
	pkgs, ok := t.versions[eco]
	if !ok {
		return "", false
	}
	v, ok := pkgs[name]
	return v, ok
}

// Ecosystem returns a copy of the table entries for one ecosystem. The pom
// rewriter sweeps this across the whole manifest.
func (t *Table) Ecosystem(eco models.Ecosystem) map[string]string {
	src := t.versions[eco]
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
