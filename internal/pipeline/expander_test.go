package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"forgeworks/macrod/internal/cache"
)

func writeTool(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestExpander(root string) *Expander {
	return NewExpander(root, cache.New(time.Minute), NewStats(), nil)
}

func TestResolveRejectsTraversal(t *testing.T) {
	e := newTestExpander(t.TempDir())

	if _, err := e.Resolve(""); err == nil {
		t.Error("empty path accepted")
	}
	// Leading .. segments are cleaned away relative to the root rather
	// than escaping it.
	abs, err := e.Resolve("../etc/passwd")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !strings.HasPrefix(abs, e.toolRoot) {
		t.Errorf("resolved path %q escapes root", abs)
	}
}

func TestExpandCachesResult(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "tool.xml", `<tool>
  <macros>
    <token name="@VERSION@">2.1</token>
  </macros>
  <version>@VERSION@</version>
</tool>`)

	e := newTestExpander(root)

	entry, cached, err := e.Expand("tool.xml")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if cached {
		t.Error("first expansion reported as cached")
	}
	if !strings.Contains(entry.XML, "<version>2.1</version>") {
		t.Errorf("token not applied:\n%s", entry.XML)
	}

	again, cached, err := e.Expand("tool.xml")
	if err != nil {
		t.Fatalf("expand again: %v", err)
	}
	if !cached {
		t.Error("second expansion missed the cache")
	}
	if again.XML != entry.XML {
		t.Error("cached entry differs from original")
	}

	snap := e.stats.Snapshot()
	if snap.TotalExpansions != 1 || snap.CacheHits != 1 {
		t.Errorf("stats = %+v, want 1 expansion and 1 hit", snap)
	}
}

func TestExpandRecordsImports(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "lib.xml", `<macros>
    <xml name="req"><requirement>samtools</requirement></xml>
  </macros>`)
	writeTool(t, root, "tool.xml", `<tool>
  <macros>
    <import>lib.xml</import>
  </macros>
  <expand macro="req"/>
</tool>`)

	e := newTestExpander(root)
	entry, _, err := e.Expand("tool.xml")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := filepath.Join(root, "lib.xml")
	if len(entry.ImportPaths) != 1 || entry.ImportPaths[0] != want {
		t.Errorf("imports = %v, want [%s]", entry.ImportPaths, want)
	}
	if !strings.Contains(entry.XML, "<requirement>samtools</requirement>") {
		t.Errorf("imported macro not expanded:\n%s", entry.XML)
	}
}

func TestExpandFailureCounted(t *testing.T) {
	root := t.TempDir()
	writeTool(t, root, "bad.xml", `<tool><expand macro="nope"/><macros><xml name="other"/></macros></tool>`)

	e := newTestExpander(root)
	if _, _, err := e.Expand("bad.xml"); err == nil {
		t.Fatal("expected expansion error")
	}
	if snap := e.stats.Snapshot(); snap.TotalFailures != 1 {
		t.Errorf("failures = %d, want 1", snap.TotalFailures)
	}
}
