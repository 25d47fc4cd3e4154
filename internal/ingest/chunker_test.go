package ingest

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkTextEmpty(t *testing.T) {
	if got := ChunkText("", 1000, 200); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
}

func TestChunkTextSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 1000)
	got := ChunkText(text, 1000, 200)
	if len(got) != 1 || got[0] != text {
		t.Errorf("expected text at chunk size to be a single chunk, got %d chunks", len(got))
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 500) + strings.Repeat("b", 500) + strings.Repeat("c", 500)
	got := ChunkText(text, 1000, 200)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks for 1500 chars, got %d", len(got))
	}
	// Consecutive chunks share the overlap region.
	tail := got[0][len(got[0])-200:]
	head := got[1][:200]
	if tail != head {
		t.Error("chunks do not share the overlap region")
	}
}

func TestChunkTextCoversAllText(t *testing.T) {
	text := strings.Repeat("x", 2750)
	got := ChunkText(text, 1000, 200)
	// step 800: starts 0, 800, 1600, 2400 -> 4 chunks, last one short.
	if len(got) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(got))
	}
	if len(got[3]) != 350 {
		t.Errorf("expected final chunk of 350 chars, got %d", len(got[3]))
	}
	for i, c := range got[:3] {
		if len(c) != 1000 {
			t.Errorf("chunk %d has %d chars, want 1000", i, len(c))
		}
	}
}

func TestChunkTextRuneSafe(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 300) // 1800 runes, multi-byte
	got := ChunkText(text, 1000, 200)
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d split a multi-byte character", i)
		}
	}
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	if utf8.RuneCountInString(got[0]) != 1000 {
		t.Errorf("chunk boundary is not rune-based: %d runes", utf8.RuneCountInString(got[0]))
	}
}

func TestChunkTextDegenerateOverlap(t *testing.T) {
	// overlap >= chunkSize must still terminate.
	got := ChunkText(strings.Repeat("a", 50), 10, 10)
	if len(got) == 0 {
		t.Fatal("expected chunks")
	}
	var total int
	for _, c := range got {
		total += len(c)
	}
	if total < 50 {
		t.Error("chunks do not cover the input")
	}
}
