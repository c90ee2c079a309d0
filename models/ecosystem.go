package models

import "fmt"

// Ecosystem identifies the dependency packaging system a manifest belongs to.
// It routes lookups to the correct registry and oracle conventions.
type Ecosystem string

const (
	EcosystemNPM     Ecosystem = "npm"
	EcosystemPyPI    Ecosystem = "pypi"
	EcosystemMaven   Ecosystem = "maven"
	EcosystemUnknown Ecosystem = "unknown"
)

func (e Ecosystem) String() string {
	return string(e)
}

// recognizedManifests maps manifest file names to their ecosystem.
// Names mapped to EcosystemUnknown are recognized but not parseable; scans
// surface them as "Unsupported Format" findings instead of silently skipping.
var recognizedManifests = map[string]Ecosystem{
	"package.json":     EcosystemNPM,
	"requirements.txt": EcosystemPyPI,
	"pom.xml":          EcosystemMaven,
	"build.gradle":     EcosystemUnknown,
	"build.gradle.kts": EcosystemUnknown,
	"Gemfile":          EcosystemUnknown,
	"go.mod":           EcosystemUnknown,
	"Cargo.toml":       EcosystemUnknown,
}

// EcosystemForManifest returns the ecosystem for a manifest file name.
// ok is false when the name is not a recognized manifest at all.
func EcosystemForManifest(name string) (eco Ecosystem, ok bool) {
	eco, ok = recognizedManifests[name]
	return eco, ok
}

// IsParseable reports whether a manifest name has a supported parser.
func IsParseable(name string) bool {
	eco, ok := recognizedManifests[name]
	return ok && eco != EcosystemUnknown
}

// PURL builds a package-url-style coordinate for oracle lookups,
// e.g. "pkg:npm/lodash@4.17.0". Maven names keep their group:artifact form.
func PURL(eco Ecosystem, name, version string) string {
	return fmt.Sprintf("pkg:%s/%s@%s", eco, name, version)
}
