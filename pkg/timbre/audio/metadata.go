package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/dhowden/tag"
)

type Metadata struct {
	Title  string
	Artist string
	Album  string
}

// ReadMetadata reads embedded tags (ID3, MP4, FLAC, OGG). Files without tags,
// including most WAVs, yield empty fields and no error.
func ReadMetadata(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// tag.ErrNoTagsFound and unrecognised containers are both "no tags" here
	m, err := tag.ReadFrom(f)
	if err != nil {
		return &Metadata{}, nil
	}
	return &Metadata{
		Title:  strings.TrimSpace(m.Title()),
		Artist: strings.TrimSpace(m.Artist()),
		Album:  strings.TrimSpace(m.Album()),
	}, nil
}

// TitleFor picks a display title: the embedded tag title when present,
// otherwise the file name without its extension.
func TitleFor(path string) string {
	if md, err := ReadMetadata(path); err == nil && md.Title != "" {
		return md.Title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ContentKey derives a cache key from the samples themselves, for buffers
// that have no file path (uploads, WASM callers).
func ContentKey(buf Buffer) string {
	h := xxhash.New64()
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(buf.SampleRate))
	h.Write(scratch[:])
	for _, s := range buf.Samples {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(s))
		h.Write(scratch[:])
	}
	return fmt.Sprintf("xxh64:%016x", h.Sum64())
}
