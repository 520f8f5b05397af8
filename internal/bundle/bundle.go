// Package bundle exports cached renditions as a zstd-compressed tar archive.
package bundle

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/voicebank/internal/cache"
)

// DefaultLevel is the zstd level used when none is given.
const DefaultLevel = 3

// Write streams entries into w as tar+zstd. Entries are named
// {voice}/{itemId}{ext}. level follows the zstd command line scale; zero
// means DefaultLevel.
func Write(w io.Writer, entries []cache.Entry, level int) error {
	if level <= 0 {
		level = DefaultLevel
	}

	zw, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	tw := tar.NewWriter(zw)
	for _, e := range entries {
		if err := add(tw, e); err != nil {
			zw.Close()
			return err
		}
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return zw.Close()
}

func add(tw *tar.Writer, e cache.Entry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", e.Name(), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Name:    path.Join(e.Voice, e.ItemID+filepath.Ext(e.Path)),
		Mode:    0o644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Format:  tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", hdr.Name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
	}
	return nil
}

// File is one archived rendition as read back by Read.
type File struct {
	Name string
	Data []byte
}

// Read decodes a bundle produced by Write.
func Read(r io.Reader) ([]File, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer zr.Close()

	var files []File
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		files = append(files, File{Name: hdr.Name, Data: data})
	}
}
