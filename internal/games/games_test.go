package games

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinCatalogFind(t *testing.T) {
	c := BuiltinCatalog()

	g, ok := c.Find("valorant")
	if !ok {
		t.Fatal("Find(valorant) = false")
	}
	if g.Name != "VALORANT" {
		t.Fatalf("Name = %q, want VALORANT", g.Name)
	}
	if len(g.Processes) == 0 {
		t.Fatal("valorant has no process signatures")
	}
}

func TestCatalogFindIsCaseInsensitive(t *testing.T) {
	c := BuiltinCatalog()
	if _, ok := c.Find("VALORANT"); !ok {
		t.Fatal("Find(VALORANT) = false, want case-insensitive match")
	}
}

func TestCatalogFindUnknown(t *testing.T) {
	c := BuiltinCatalog()
	if _, ok := c.Find("pong"); ok {
		t.Fatal("Find(pong) = true, want false")
	}
}

func TestLoadCatalogMergesOverBuiltins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.yaml")
	content := `
games:
  - id: valorant
    name: VALORANT (custom)
    processes: [my-valorant.exe]
  - id: chess_com
    name: Chess.com
    processes: [chess.exe]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}

	g, ok := c.Find("valorant")
	if !ok || g.Name != "VALORANT (custom)" {
		t.Fatalf("Find(valorant) = %+v, %v, want custom override", g, ok)
	}
	if _, ok := c.Find("chess_com"); !ok {
		t.Fatal("Find(chess_com) = false, want appended entry")
	}
	if _, ok := c.Find("cs2"); !ok {
		t.Fatal("Find(cs2) = false, builtin lost during merge")
	}
}

func TestLoadCatalogSkipsMalformedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.yaml")
	content := `
games:
  - id: ""
    name: nameless
  - id: no_processes
    name: No Processes
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	if _, ok := c.Find("no_processes"); ok {
		t.Fatal("entry without processes was kept")
	}
	if c.Len() != BuiltinCatalog().Len() {
		t.Fatalf("catalog size = %d, want builtins only (%d)", c.Len(), BuiltinCatalog().Len())
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadCatalog(missing) error = nil, want error")
	}
}

func stubDetector(c *Catalog, names map[string]bool, err error) *Detector {
	d := NewDetector(c)
	d.snapshot = func() (map[string]bool, error) { return names, err }
	return d
}

func TestDetectMatchesRunningProcess(t *testing.T) {
	d := stubDetector(nil, map[string]bool{"steam.exe": true, "cs2.exe": true}, nil)

	g, ok := d.Detect()
	if !ok {
		t.Fatal("Detect() = false with cs2.exe running")
	}
	if g.ID != "cs2" {
		t.Fatalf("Detect() = %q, want cs2", g.ID)
	}
}

func TestDetectIsCaseInsensitive(t *testing.T) {
	// Snapshots hold lowercased names; signatures may use any case.
	d := stubDetector(nil, map[string]bool{"valorant-win64-shipping.exe": true}, nil)

	g, ok := d.Detect()
	if !ok || g.ID != "valorant" {
		t.Fatalf("Detect() = %q, %v, want valorant", g.ID, ok)
	}
}

func TestDetectNothingRunning(t *testing.T) {
	d := stubDetector(nil, map[string]bool{"explorer.exe": true}, nil)

	if _, ok := d.Detect(); ok {
		t.Fatal("Detect() = true with no game processes")
	}
}

func TestDetectSnapshotFailure(t *testing.T) {
	d := stubDetector(nil, nil, fmt.Errorf("permission denied"))

	if _, ok := d.Detect(); ok {
		t.Fatal("Detect() = true when snapshot fails")
	}
}
