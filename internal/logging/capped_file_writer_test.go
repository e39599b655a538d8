package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCappedFileWriterStartsOverAtCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	defer w.Close()

	chunk := make([]byte, 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() > 1<<20 {
		t.Fatalf("log grew past cap: %d bytes", info.Size())
	}
}

func TestCappedFileWriterAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.log")
	w, err := newCappedFileWriter(path, 1)
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := w.Write([]byte("second\n")); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("unexpected contents %q", data)
	}
}
