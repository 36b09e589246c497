// Package archive bundles a staged document tree plus its manifest into a
// single gzip-compressed tar archive, and reads such archives back.
package archive

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/bastionproject/bastion/internal/checksum"
)

// ManifestName is the manifest's entry name inside every archive.
const ManifestName = "manifest.json"

// ManifestEntry describes one staged file.
type ManifestEntry struct {
	Path     string `json:"path"` // relative to the staged root, slash-separated
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Manifest lists every file bundled into an archive.
type Manifest struct {
	CreatedAt time.Time       `json:"createdAt"`
	FileCount int             `json:"fileCount"`
	TotalSize int64           `json:"totalSize"`
	Entries   []ManifestEntry `json:"entries"`
}

// BuildManifest walks the staged tree and records every regular file's
// relative path, checksum and size.
func BuildManifest(root string) (*Manifest, error) {
	m := &Manifest{CreatedAt: time.Now()}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		sum, err := checksum.File(path)
		if err != nil {
			return err
		}
		m.Entries = append(m.Entries, ManifestEntry{
			Path:     filepath.ToSlash(rel),
			Checksum: sum,
			Size:     info.Size(),
		})
		m.TotalSize += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}
	m.FileCount = len(m.Entries)
	return m, nil
}

// Create writes a tar.gz archive containing the manifest followed by every
// file the manifest lists, streaming each file from the staged root.
func Create(archivePath, srcRoot string, m *Manifest) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	manifestData, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	hdr := &tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(manifestData)),
		ModTime: m.CreatedAt,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifestData); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for _, entry := range m.Entries {
		if err := addFile(tw, srcRoot, entry); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize gzip: %w", err)
	}
	return out.Close()
}

func addFile(tw *tar.Writer, srcRoot string, entry ManifestEntry) error {
	path := filepath.Join(srcRoot, filepath.FromSlash(entry.Path))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Path, err)
	}
	defer f.Close()

	hdr := &tar.Header{
		Name: entry.Path,
		Mode: 0o644,
		Size: entry.Size,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", entry.Path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("write %s: %w", entry.Path, err)
	}
	return nil
}

// List returns the entry names in an archive, in order.
func List(archivePath string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive entry: %w", err)
		}
		names = append(names, hdr.Name)
	}
	return names, nil
}

// ReadManifest extracts and parses the manifest from an archive.
func ReadManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive entry: %w", err)
		}
		if hdr.Name == ManifestName {
			var m Manifest
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return nil, fmt.Errorf("parse manifest: %w", err)
			}
			return &m, nil
		}
	}
	return nil, fmt.Errorf("archive has no %s", ManifestName)
}

// Extract unpacks an archive into destDir, refusing entries that would
// escape it.
func Extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		rel, err := filepath.Rel(destDir, target)
		if err != nil || strings.HasPrefix(rel, "..") {
			return fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fs.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}
