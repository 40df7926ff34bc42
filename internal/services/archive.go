package services

import (
	"bytes"
	"time"

	"github.com/klauspost/compress/zip"

	"manifesthub/internal/bundle"
)

// ZipFiles writes files into an in-memory zip archive. modified stamps
// every entry so the same bundle always produces the same archive.
func ZipFiles(files []bundle.File, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
