package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoManifest is returned for a .tar.gz that lacks manifest.json.
var ErrNoManifest = errors.New("archive: manifest.json not found")

// Info summarizes an archive on disk.
type Info struct {
	Path     string
	Size     int64
	Manifest *Manifest // nil when the manifest could not be read
	Err      error     // why Manifest is nil
}

// Timestamp is the manifest time, or "" for unreadable archives.
func (i Info) Timestamp() string {
	if i.Manifest == nil {
		return ""
	}
	return i.Manifest.Timestamp
}

// List returns the archives in dir, newest first. Unreadable archives are
// listed last with Err set.
func List(dir string) ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tar.gz"))
	if err != nil {
		return nil, fmt.Errorf("archive: list %s: %w", dir, err)
	}
	infos := make([]Info, 0, len(matches))
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		info := Info{Path: path, Size: st.Size()}
		info.Manifest, info.Err = ReadManifest(path)
		infos = append(infos, info)
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].Timestamp() > infos[j].Timestamp()
	})
	return infos, nil
}

// ReadManifest reads only the manifest of the archive at path.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: %s: %w", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, ErrNoManifest
		}
		if err != nil {
			return nil, fmt.Errorf("archive: %s: %w", path, err)
		}
		if hdr.Name != manifestName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("archive: %s: manifest: %w", path, err)
		}
		return &m, nil
	}
}
