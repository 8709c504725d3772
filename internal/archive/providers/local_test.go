package providers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.txt")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLocalRoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	src := writeTemp(t, "replay notes")
	if err := l.Upload(ctx, src, "sessions/s1/notes.txt"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	got, err := l.List(ctx, "sessions")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0] != "sessions/s1/notes.txt" {
		t.Fatalf("List = %v, want [sessions/s1/notes.txt]", got)
	}

	dst := filepath.Join(t.TempDir(), "out.txt")
	if err := l.Download(ctx, "sessions/s1/notes.txt", dst); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "replay notes" {
		t.Fatalf("content = %q, want %q", data, "replay notes")
	}
}

func TestLocalListPrefix(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	src := writeTemp(t, "x")
	for _, remote := range []string{"sessions/a/f.txt", "sessions/b/f.txt", "other/f.txt"} {
		if err := l.Upload(ctx, src, remote); err != nil {
			t.Fatalf("Upload %s: %v", remote, err)
		}
	}

	got, err := l.List(ctx, "sessions/a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0] != "sessions/a/f.txt" {
		t.Fatalf("List = %v, want [sessions/a/f.txt]", got)
	}
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	src := writeTemp(t, "x")

	for _, bad := range []string{"../outside.txt", "/etc/passwd", "a/../../b.txt", ".", ""} {
		if err := l.Upload(ctx, src, bad); err == nil {
			t.Fatalf("Upload(%q) succeeded, want error", bad)
		}
	}
}

func TestLocalDeleteCleansEmptyDirs(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	src := writeTemp(t, "x")
	if err := l.Upload(ctx, src, "sessions/s1/stills/000.jpg"); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := l.Delete(ctx, "sessions/s1/stills/000.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "sessions")); !os.IsNotExist(err) {
		t.Fatal("sessions dir still present after delete")
	}
}

func TestLocalDeleteMissingIsNotAnError(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := l.Delete(context.Background(), "sessions/nope/file.txt"); err != nil {
		t.Fatalf("Delete = %v, want nil", err)
	}
}
