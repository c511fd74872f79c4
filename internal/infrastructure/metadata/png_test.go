package metadata

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func chunk(chunkType string, payload []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.WriteString(chunkType)
	buf.Write(payload)
	buf.Write([]byte{0, 0, 0, 0}) // CRC, not validated
	return buf.Bytes()
}

func textChunk(keyword, text string) []byte {
	return chunk("tEXt", append(append([]byte(keyword), 0), []byte(text)...))
}

func itxtChunk(keyword, text string) []byte {
	payload := append([]byte(keyword), 0, 0, 0) // null, compFlag=0, compMethod=0
	payload = append(payload, 0)                // empty language tag
	payload = append(payload, 0)                // empty translated keyword
	payload = append(payload, []byte(text)...)
	return chunk("iTXt", payload)
}

func pngFile(chunks ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(pngSignature)
	for _, c := range chunks {
		buf.Write(c)
	}
	buf.Write(chunk("IEND", nil))
	return buf.Bytes()
}

func TestParseCollectsTextChunksInOrder(t *testing.T) {
	data := pngFile(
		textChunk("prompt", "a red fox"),
		textChunk("seed", "42"),
		itxtChunk("model", "sdxl"),
	)

	meta, err := ParsePNGTextChunks(data, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := []string{"prompt", "seed", "model"}
	got := meta.Keys()
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i, k := range want {
		if got[i] != k {
			t.Errorf("key[%d] = %q, want %q", i, got[i], k)
		}
	}
	if v, _ := meta.Get("model"); v != "sdxl" {
		t.Errorf("model = %q", v)
	}
}

func TestTaggedJSONChunkExpands(t *testing.T) {
	data := pngFile(
		textChunk("other", "ignored"),
		textChunk("params", `{"prompt":"dunes","steps":"30"}`),
	)

	meta, err := ParsePNGTextChunks(data, "params")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Len() != 2 {
		t.Fatalf("len = %d, want 2 expanded entries", meta.Len())
	}
	if v, _ := meta.Get("prompt"); v != "dunes" {
		t.Errorf("prompt = %q", v)
	}
	if _, ok := meta.Get("other"); ok {
		t.Error("untagged chunk leaked into tagged extraction")
	}
}

func TestTaggedNonJSONChunkKeptVerbatim(t *testing.T) {
	data := pngFile(textChunk("comment", "plain text value"))

	meta, err := ParsePNGTextChunks(data, "comment")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, _ := meta.Get("comment"); v != "plain text value" {
		t.Errorf("comment = %q", v)
	}
}

func TestNonPNGDataYieldsEmptyMetadata(t *testing.T) {
	meta, err := ParsePNGTextChunks([]byte("GIF89a not a png"), "")
	if err != nil {
		t.Fatalf("non-png input errored: %v", err)
	}
	if meta.Len() != 0 {
		t.Errorf("len = %d, want 0", meta.Len())
	}
}

func TestTruncatedChunkIsAnError(t *testing.T) {
	data := pngFile(textChunk("prompt", "a red fox"))
	data = data[:len(data)-2] // cut into the IEND chunk's CRC

	if _, err := ParsePNGTextChunks(data, ""); err == nil {
		t.Error("truncated chunk should error")
	}
}

func TestCompressedITXTSkipped(t *testing.T) {
	payload := append([]byte("big"), 0, 1, 0) // compFlag=1
	payload = append(payload, 0, 0)
	payload = append(payload, []byte("zzz")...)
	data := pngFile(chunk("iTXt", payload), textChunk("ok", "yes"))

	meta, err := ParsePNGTextChunks(data, "")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := meta.Get("big"); ok {
		t.Error("compressed iTXt should be skipped")
	}
	if v, _ := meta.Get("ok"); v != "yes" {
		t.Errorf("ok = %q", v)
	}
}
