package metadataadapter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// fastReader serves the common case locally, without spawning an external
// process, the way the teacher's EXIFExtractor reads JPEG/HEIC directly
// via goexif rather than shelling out.
type fastReader struct{}

func newFastReader() *fastReader { return &fastReader{} }

var fastExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".heic": true, ".heif": true,
}

// read returns a flat tag map for path if it is a format fastReader
// understands, and ok=false otherwise so the caller falls back to the
// external tool.
func (r *fastReader) read(path string) (map[string]interface{}, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if !fastExtensions[ext] {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, false
	}

	data := make(map[string]interface{})
	x.Walk(tagCollector(data))
	return data, true
}

type tagCollector map[string]interface{}

func (c tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if v, err := tag.StringVal(); err == nil {
		c[string(name)] = v
		return nil
	}
	c[string(name)] = tag.String()
	return nil
}
