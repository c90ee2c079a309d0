package manifest

import (
	"errors"
	"testing"

	"github.com/patchwatch/patchwatch/models"
)

func TestParsePackageJSONMergesSections(t *testing.T) {
	content := `{
  "name": "demo",
  "dependencies": {
    "lodash": "^4.17.0",
    "axios": "~0.21.1"
  },
  "devDependencies": {
    "jest": "26.6.3"
  }
}`
	deps, err := Parse("package.json", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 3 {
		t.Fatalf("expected 3 dependencies, got %d: %+v", len(deps), deps)
	}
	// Sorted key order: axios, jest, lodash.
	if deps[0].Name != "axios" || deps[1].Name != "jest" || deps[2].Name != "lodash" {
		t.Fatalf("unexpected order: %+v", deps)
	}
	if deps[2].VersionExpr != "^4.17.0" {
		t.Fatalf("expected raw expression preserved, got %q", deps[2].VersionExpr)
	}
	if deps[2].Version != "4.17.0" {
		t.Fatalf("expected caret stripped, got %q", deps[2].Version)
	}
	if deps[0].Version != "0.21.1" {
		t.Fatalf("expected tilde stripped, got %q", deps[0].Version)
	}
	for _, d := range deps {
		if d.Ecosystem != models.EcosystemNPM {
			t.Fatalf("expected npm ecosystem, got %q", d.Ecosystem)
		}
	}
}

func TestParsePackageJSONMalformed(t *testing.T) {
	_, err := Parse("package.json", `{"dependencies": {`)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if pe.File != "package.json" {
		t.Fatalf("unexpected file in parse error: %q", pe.File)
	}
}

func TestParseRequirements(t *testing.T) {
	content := `# production deps
Flask==2.2.3
requests>=2.28.0

django<4.0  # pinned below 4
gunicorn
`
	deps, err := Parse("requirements.txt", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 4 {
		t.Fatalf("expected 4 dependencies, got %d: %+v", len(deps), deps)
	}

	want := []struct {
		name, expr, version string
	}{
		{"Flask", "==2.2.3", "2.2.3"},
		{"requests", ">=2.28.0", "2.28.0"},
		{"django", "<4.0", "4.0"},
		{"gunicorn", "latest", "latest"},
	}
	for i, w := range want {
		if deps[i].Name != w.name || deps[i].VersionExpr != w.expr || deps[i].Version != w.version {
			t.Fatalf("dep %d: got %+v, want %+v", i, deps[i], w)
		}
		if deps[i].Ecosystem != models.EcosystemPyPI {
			t.Fatalf("dep %d: expected pypi ecosystem", i)
		}
	}

	if deps[3].HasPinnedVersion() {
		t.Fatal("bare requirement should not count as pinned")
	}
}

func TestParsePOM(t *testing.T) {
	content := `<?xml version="1.0"?>
<project>
  <dependencies>
    <dependency>
      <groupId>com.fasterxml.jackson.core</groupId>
      <artifactId>jackson-databind</artifactId>
      <version>2.9.10</version>
    </dependency>
    <dependency>
      <groupId>org.apache.logging.log4j</groupId>
      <artifactId>log4j-core</artifactId>
      <scope>compile</scope>
      <version>2.14.1</version>
    </dependency>
  </dependencies>
</project>`
	deps, err := Parse("pom.xml", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %d: %+v", len(deps), deps)
	}
	if deps[0].Name != "com.fasterxml.jackson.core:jackson-databind" {
		t.Fatalf("expected compound group:artifact name, got %q", deps[0].Name)
	}
	if deps[0].Version != "2.9.10" {
		t.Fatalf("unexpected version: %q", deps[0].Version)
	}
	if deps[1].Name != "org.apache.logging.log4j:log4j-core" || deps[1].Version != "2.14.1" {
		t.Fatalf("unexpected second dependency: %+v", deps[1])
	}
}

func TestParsePOMManagedVersionSkipped(t *testing.T) {
	content := `<?xml version="1.0"?>
<project>
  <dependencies>
    <dependency>
      <groupId>com.google.guava</groupId>
      <artifactId>guava</artifactId>
    </dependency>
    <dependency>
      <groupId>commons-io</groupId>
      <artifactId>commons-io</artifactId>
      <version>2.7</version>
    </dependency>
  </dependencies>
</project>`
	deps, err := Parse("pom.xml", content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The version-less guava block is skipped; commons-io must survive with
	// its own coordinates, not fused with guava's.
	if len(deps) != 1 {
		t.Fatalf("expected 1 dependency, got %d: %+v", len(deps), deps)
	}
	if deps[0].Name != "commons-io:commons-io" || deps[0].Version != "2.7" {
		t.Fatalf("unexpected dependency: %+v", deps[0])
	}
}

func TestParsePOMMalformed(t *testing.T) {
	_, err := Parse("pom.xml", `<project><dependencies>`)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError for unbalanced XML, got %v", err)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("build.gradle", `dependencies { implementation "x:y:1.0" }`)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
