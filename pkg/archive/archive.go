// Package archive bundles a realm's persistent state into a single
// .tar.gz: the character database, the Beastmaster database, configs
// and text files, with a manifest of SHA-256 sums.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kinds of archived files.
const (
	KindBolt = "bolt"
	KindSQL  = "sql"
	KindConf = "conf"
	KindText = "text"
)

// Archive member names for the two databases.
const (
	BoltMember = "data/realm.bolt"
	SQLMember  = "data/beastmaster.db"
)

const manifestName = "manifest.json"

// Manifest describes an archive's contents.
type Manifest struct {
	Version     int                  `json:"version"`
	Server      string               `json:"server"`
	Timestamp   string               `json:"timestamp"`
	Realm       string               `json:"realm"`
	Characters  int                  `json:"characters"`
	CatalogPets int                  `json:"catalog_pets"`
	Files       map[string]FileEntry `json:"files"`
}

// FileEntry is one archived file.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Kind   string `json:"kind"`
}

// Params are the inputs to Create. Empty paths and nil funcs are skipped.
type Params struct {
	Dir         string                 // output directory
	Server      string                 // server version string
	Realm       string                 // realm name
	Characters  int                    // character count for the manifest
	CatalogPets int                    // catalog size for the manifest
	Snapshot    func(dst string) error // writes a consistent bolt copy to dst
	SQLPath     string                 // sqlite file
	Checkpoint  func() error           // flushes the sqlite WAL before copying
	Confs       []string               // config files, stored under conf/
	TextDir     string                 // stored under text/
	Now         func() time.Time
}

// Create writes a new archive into p.Dir and returns its path. The
// archive appears under its final name only once it is complete.
func Create(p Params) (string, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	stage, err := os.MkdirTemp("", "realm-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	t := now()
	name := fmt.Sprintf("%s-%s.tar.gz", slug(p.Realm), t.Format("20060102-150405"))
	final := filepath.Join(p.Dir, name)
	partial := final + ".partial"

	out, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", partial, err)
	}
	w := newWriter(out)
	w.manifest = Manifest{
		Version:     2,
		Server:      p.Server,
		Timestamp:   t.UTC().Format(time.RFC3339),
		Realm:       p.Realm,
		Characters:  p.Characters,
		CatalogPets: p.CatalogPets,
		Files:       make(map[string]FileEntry),
	}

	err = w.fill(p, stage)
	if cerr := w.close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return "", err
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("archive: finalize %s: %w", final, err)
	}
	return final, nil
}

// slug turns a realm name into a file name prefix.
func slug(realm string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(realm) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case sb.Len() > 0 && !strings.HasSuffix(sb.String(), "-"):
			sb.WriteByte('-')
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if s == "" {
		return "realm"
	}
	return s
}

type writer struct {
	gz       *gzip.Writer
	tw       *tar.Writer
	manifest Manifest
}

func newWriter(dst io.Writer) *writer {
	gz := gzip.NewWriter(dst)
	return &writer{gz: gz, tw: tar.NewWriter(gz)}
}

func (w *writer) fill(p Params, stage string) error {
	if p.Snapshot != nil {
		snap := filepath.Join(stage, "realm.bolt")
		if err := p.Snapshot(snap); err != nil {
			return fmt.Errorf("archive: bolt snapshot: %w", err)
		}
		if err := w.addFile(snap, BoltMember, KindBolt); err != nil {
			return err
		}
	}
	if p.SQLPath != "" {
		if p.Checkpoint != nil {
			if err := p.Checkpoint(); err != nil {
				return fmt.Errorf("archive: sql checkpoint: %w", err)
			}
		}
		if err := w.addFile(p.SQLPath, SQLMember, KindSQL); err != nil {
			return err
		}
	}
	for _, conf := range p.Confs {
		if conf == "" {
			continue
		}
		if _, err := os.Stat(conf); err != nil {
			continue
		}
		if err := w.addFile(conf, "conf/"+filepath.Base(conf), KindConf); err != nil {
			return err
		}
	}
	if p.TextDir != "" {
		if info, err := os.Stat(p.TextDir); err == nil && info.IsDir() {
			if err := w.addDir(p.TextDir, "text", KindText); err != nil {
				return err
			}
		}
	}
	return nil
}

// close appends the manifest and flushes the tar and gzip streams.
func (w *writer) close() error {
	data, err := json.MarshalIndent(w.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal manifest: %w", err)
	}
	hdr := &tar.Header{Name: manifestName, Size: int64(len(data)), Mode: 0644, ModTime: time.Now()}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: manifest header: %w", err)
	}
	if _, err := w.tw.Write(data); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	if err := w.tw.Close(); err != nil {
		return fmt.Errorf("archive: close tar: %w", err)
	}
	if err := w.gz.Close(); err != nil {
		return fmt.Errorf("archive: close gzip: %w", err)
	}
	return nil
}

// addFile copies src into the archive as member, hashing as it goes.
func (w *writer) addFile(src, member, kind string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", src, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("archive: stat %s: %w", src, err)
	}

	hdr := &tar.Header{Name: member, Size: info.Size(), Mode: 0644, ModTime: info.ModTime()}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("archive: header %s: %w", member, err)
	}
	h := sha256.New()
	n, err := io.Copy(w.tw, io.TeeReader(f, h))
	if err != nil {
		return fmt.Errorf("archive: write %s: %w", member, err)
	}
	w.manifest.Files[member] = FileEntry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: n, Kind: kind}
	return nil
}

func (w *writer) addDir(dir, prefix, kind string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return w.addFile(path, prefix+"/"+filepath.ToSlash(rel), kind)
	})
}
