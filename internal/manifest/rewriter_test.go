package manifest

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/patchwatch/patchwatch/models"
)

func decodeDeps(t *testing.T, out, section string) map[string]string {
	t.Helper()
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("rewritten package.json is not valid JSON: %v\n%s", err, out)
	}
	deps := map[string]string{}
	if raw, ok := doc[section]; ok {
		if err := json.Unmarshal(raw, &deps); err != nil {
			t.Fatalf("decoding %s: %v", section, err)
		}
	}
	return deps
}

func TestRewritePackageJSONAppliesCaret(t *testing.T) {
	content := `{
  "name": "demo",
  "dependencies": {
    "lodash": "^4.17.0",
    "axios": "0.21.1"
  },
  "devDependencies": {
    "jest": "~26.6.0"
  }
}`
	rw := &Rewriter{}
	out, err := rw.Rewrite("package.json", content, []models.SecureVersionRecommendation{
		{PackageName: "lodash", CurrentVersion: "4.17.0", SecureVersion: "4.17.21"},
		{PackageName: "jest", CurrentVersion: "26.6.0", SecureVersion: "26.6.3"},
	})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	deps := decodeDeps(t, out, "dependencies")
	if deps["lodash"] != "^4.17.21" {
		t.Fatalf("expected ^4.17.21, got %q", deps["lodash"])
	}
	if deps["axios"] != "0.21.1" {
		t.Fatalf("axios should be untouched, got %q", deps["axios"])
	}
	// Caret is re-applied even though the original used a tilde.
	dev := decodeDeps(t, out, "devDependencies")
	if dev["jest"] != "^26.6.3" {
		t.Fatalf("expected ^26.6.3 in devDependencies, got %q", dev["jest"])
	}
	// Non-dependency structure survives.
	var doc map[string]json.RawMessage
	_ = json.Unmarshal([]byte(out), &doc)
	if string(doc["name"]) != `"demo"` {
		t.Fatalf("name field corrupted: %s", doc["name"])
	}
}

func TestRewritePackageJSONSkipsAlreadySecure(t *testing.T) {
	content := `{"dependencies": {"lodash": "^4.17.21"}}`
	rw := &Rewriter{}
	out, err := rw.Rewrite("package.json", content, []models.SecureVersionRecommendation{
		{PackageName: "lodash", CurrentVersion: "4.17.21", SecureVersion: "4.17.21", IsSecure: true},
	})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	deps := decodeDeps(t, out, "dependencies")
	if deps["lodash"] != "^4.17.21" {
		t.Fatalf("secure entry must not change, got %q", deps["lodash"])
	}
}

func TestRewriteRequirementsPreservesStructure(t *testing.T) {
	content := "# prod deps\nFlask==2.2.0\n\nrequests>=2.28.0  # http client\ngunicorn\n"
	rw := &Rewriter{}
	out, err := rw.Rewrite("requirements.txt", content, []models.SecureVersionRecommendation{
		{PackageName: "Flask", CurrentVersion: "2.2.0", SecureVersion: "2.2.3"},
	})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	inLines := strings.Split(content, "\n")
	outLines := strings.Split(out, "\n")
	if len(outLines) != len(inLines) {
		t.Fatalf("line count changed: %d → %d", len(inLines), len(outLines))
	}
	if outLines[0] != "# prod deps" {
		t.Fatalf("comment line changed: %q", outLines[0])
	}
	if outLines[1] != "Flask==2.2.3" {
		t.Fatalf("expected upgraded Flask line, got %q", outLines[1])
	}
	if outLines[2] != "" {
		t.Fatalf("blank line changed: %q", outLines[2])
	}
	if outLines[3] != "requests>=2.28.0  # http client" {
		t.Fatalf("non-recommended line changed: %q", outLines[3])
	}
	if outLines[4] != "gunicorn" {
		t.Fatalf("bare requirement changed: %q", outLines[4])
	}
}

func TestRewriteRequirementsSecureLineUntouched(t *testing.T) {
	content := "Flask==2.2.3\n"
	rw := &Rewriter{}
	out, err := rw.Rewrite("requirements.txt", content, []models.SecureVersionRecommendation{
		{PackageName: "Flask", CurrentVersion: "2.2.3", SecureVersion: "2.2.3", IsSecure: true},
	})
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if out != content {
		t.Fatalf("expected byte-identical output, got %q", out)
	}
}

func TestRewriteRequirementsIdempotent(t *testing.T) {
	content := "Flask==2.2.0\ndjango==3.2.0\n"
	recs := []models.SecureVersionRecommendation{
		{PackageName: "Flask", CurrentVersion: "2.2.0", SecureVersion: "2.2.3"},
		{PackageName: "django", CurrentVersion: "3.2.0", SecureVersion: "3.2.18"},
	}
	rw := &Rewriter{}
	first, err := rw.Rewrite("requirements.txt", content, recs)
	if err != nil {
		t.Fatalf("first rewrite failed: %v", err)
	}
	second, err := rw.Rewrite("requirements.txt", first, recs)
	if err != nil {
		t.Fatalf("second rewrite failed: %v", err)
	}
	if second != first {
		t.Fatalf("second pass changed output:\n%q\nvs\n%q", first, second)
	}
}

const pomFixture = `<?xml version="1.0"?>
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
      <version>2.17.1</version>
    </dependency>
  </dependencies>
</project>`

func TestRewritePOMTableDriven(t *testing.T) {
	rw := &Rewriter{Table: map[string]string{
		"com.fasterxml.jackson.core:jackson-databind": "2.12.7",
		"org.apache.logging.log4j:log4j-core":         "2.17.1",
	}}
	out, err := rw.Rewrite("pom.xml", pomFixture, nil)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if !strings.Contains(out, "<version>2.12.7</version>") {
		t.Fatalf("jackson-databind not upgraded:\n%s", out)
	}
	if strings.Contains(out, "2.9.10") {
		t.Fatalf("old version still present:\n%s", out)
	}
	// log4j-core already matches the table: untouched.
	if !strings.Contains(out, "<version>2.17.1</version>") {
		t.Fatalf("log4j-core version lost:\n%s", out)
	}
}

func TestRewritePOMManagedVersionLeavesNeighborAlone(t *testing.T) {
	// guava's version is BOM-managed: no <version> in its own block. The
	// table sweep must not reach past its block and clobber commons-io.
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
	rw := &Rewriter{Table: map[string]string{
		"com.google.guava:guava": "32.0.1",
		"commons-io:commons-io":  "2.11.0",
	}}
	out, err := rw.Rewrite("pom.xml", content, nil)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if strings.Contains(out, "32.0.1") {
		t.Fatalf("guava's table version leaked into the document:\n%s", out)
	}
	if !strings.Contains(out, "<version>2.11.0</version>") {
		t.Fatalf("commons-io not upgraded:\n%s", out)
	}
	if strings.Contains(out, "<version>2.7</version>") {
		t.Fatalf("old commons-io version still present:\n%s", out)
	}
}

func TestRewritePOMNoChangesIsByteIdentical(t *testing.T) {
	rw := &Rewriter{Table: map[string]string{
		"com.fasterxml.jackson.core:jackson-databind": "2.9.10",
		"org.apache.logging.log4j:log4j-core":         "2.17.1",
	}}
	out, err := rw.Rewrite("pom.xml", pomFixture, nil)
	if err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	if out != pomFixture {
		t.Fatal("expected byte-identical output when nothing qualifies")
	}
}
