package metadata

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ParsePNGTextChunks walks a PNG byte stream and collects its tEXt and iTXt
// chunks as metadata, in file order. Compressed iTXt payloads are skipped.
//
// When tagName is non-empty only the chunk with that keyword is used; if its
// value is a JSON object (generator tools commonly pack all their settings
// into one chunk) the object is expanded into individual entries.
// Non-PNG payloads yield empty metadata rather than an error: an image
// without embedded metadata is a normal case, not a failure.
func ParsePNGTextChunks(data []byte, tagName string) (*display.Metadata, error) {
	meta := display.NewMetadata()
	if !bytes.HasPrefix(data, pngSignature) {
		return meta, nil
	}

	offset := len(pngSignature)
	for offset+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		chunkType := string(data[offset+4 : offset+8])
		dataStart := offset + 8
		dataEnd := dataStart + length
		if length < 0 || dataEnd+4 > len(data) {
			return meta, fmt.Errorf("png metadata: truncated chunk %q", chunkType)
		}

		switch chunkType {
		case "tEXt":
			key, value, ok := splitTextChunk(data[dataStart:dataEnd])
			if ok {
				addEntry(meta, key, value, tagName)
			}
		case "iTXt":
			key, value, ok := splitInternationalChunk(data[dataStart:dataEnd])
			if ok {
				addEntry(meta, key, value, tagName)
			}
		case "IEND":
			return meta, nil
		}

		offset = dataEnd + 4 // skip CRC
	}
	return meta, nil
}

// splitTextChunk parses "keyword\x00text".
func splitTextChunk(chunk []byte) (string, string, bool) {
	i := bytes.IndexByte(chunk, 0)
	if i <= 0 {
		return "", "", false
	}
	return string(chunk[:i]), string(chunk[i+1:]), true
}

// splitInternationalChunk parses
// "keyword\x00compFlag compMethod langTag\x00translated\x00text",
// skipping compressed payloads.
func splitInternationalChunk(chunk []byte) (string, string, bool) {
	i := bytes.IndexByte(chunk, 0)
	if i <= 0 || i+2 >= len(chunk) {
		return "", "", false
	}
	keyword := string(chunk[:i])
	if chunk[i+1] != 0 { // compression flag
		return "", "", false
	}
	rest := chunk[i+3:]
	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		return "", "", false
	}
	rest = rest[j+1:]
	k := bytes.IndexByte(rest, 0)
	if k < 0 {
		return "", "", false
	}
	return keyword, string(rest[k+1:]), true
}

func addEntry(meta *display.Metadata, key, value, tagName string) {
	if tagName == "" {
		meta.Set(key, value)
		return
	}
	if key != tagName {
		return
	}
	// A tagged chunk holding a JSON object expands into individual entries.
	expanded := display.NewMetadata()
	if err := json.Unmarshal([]byte(value), expanded); err == nil && expanded.Len() > 0 {
		for _, k := range expanded.Keys() {
			v, _ := expanded.Get(k)
			meta.Set(k, v)
		}
		return
	}
	meta.Set(key, value)
}
