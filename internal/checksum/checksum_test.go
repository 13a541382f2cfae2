package checksum

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSum_KnownVector(t *testing.T) {
	got := Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Sum(abc) = %s, want %s", got, want)
	}
}

func TestFile_MatchesSum(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte("0123456789"), 20_000) // spans many chunks
	p := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}

	slow, err := File(p)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	fast, err := FileFast(p)
	if err != nil {
		t.Fatalf("FileFast: %v", err)
	}
	if slow != Sum(data) || fast != slow {
		t.Errorf("digests disagree: file=%s fast=%s sum=%s", slow, fast, Sum(data))
	}
}

func TestFile_Deterministic(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.jpg")
	_ = os.WriteFile(p, []byte("same bytes"), 0o644)
	a, _ := File(p)
	b, _ := File(p)
	if a != b || a == "" {
		t.Errorf("rehash changed: %q vs %q", a, b)
	}
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.jpg"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist in chain, got %v", err)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestReader_ErrorYieldsNoDigest(t *testing.T) {
	sum, err := Reader(failingReader{}, ChunkSize)
	if err == nil {
		t.Fatal("expected read error")
	}
	if sum != "" {
		t.Errorf("partial digest returned: %q", sum)
	}
}
