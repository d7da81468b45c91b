package image

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTag(t *testing.T) {
	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "Dockerfile")
	if err := os.WriteFile(dockerfile, []byte("FROM ubuntu:24.04\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tag, err := Tag(dockerfile)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if !strings.HasPrefix(tag, "sandbox:") {
		t.Errorf("tag = %q, want sandbox: prefix", tag)
	}
	if len(strings.TrimPrefix(tag, "sandbox:")) != 32 {
		t.Errorf("tag hash length = %d, want 32", len(strings.TrimPrefix(tag, "sandbox:")))
	}

	// Same bytes, same tag.
	again, err := Tag(dockerfile)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if again != tag {
		t.Errorf("tag changed between calls: %q vs %q", tag, again)
	}

	// Any byte change forces a new tag.
	if err := os.WriteFile(dockerfile, []byte("FROM ubuntu:24.04\nRUN true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	changed, err := Tag(dockerfile)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if changed == tag {
		t.Error("tag unchanged after Dockerfile edit")
	}
}

func TestTagMissingDockerfile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Tag(filepath.Join(dir, "Dockerfile")); err != ErrDockerfileMissing {
		t.Errorf("err = %v, want ErrDockerfileMissing", err)
	}
}

func TestTail(t *testing.T) {
	out := "a\nb\nc\nd\n"
	got := Tail(out, 2)
	if len(got) != 2 || got[0] != "c" || got[1] != "d" {
		t.Errorf("Tail = %v, want [c d]", got)
	}

	short := Tail("only\n", 20)
	if len(short) != 1 || short[0] != "only" {
		t.Errorf("Tail = %v, want [only]", short)
	}
}

func TestBuildErrorMessage(t *testing.T) {
	err := &BuildError{ExitStatus: 1, LogTail: []string{"step 3 failed"}}
	msg := err.Error()
	if !strings.Contains(msg, "exit 1") || !strings.Contains(msg, "step 3 failed") {
		t.Errorf("unexpected message: %q", msg)
	}
}
