package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver decides whether an archived config replaces a differing
// current one.
type Resolver func(name string, current, archived []byte) (bool, error)

// RestoreParams are the inputs to Restore. Empty destinations skip
// that part of the archive.
type RestoreParams struct {
	Archive  string
	BoltDest string
	SQLDest  string
	TextDest string
	ConfDir  string
	Resolve  Resolver // nil keeps every differing config
}

// Result lists what Restore wrote and what it left alone.
type Result struct {
	Manifest *Manifest
	Restored []string // archive members written
	Kept     []string // configs that differed and were not replaced
}

// Restore verifies every checksum in the archive before writing anything,
// then installs the members to their destinations.
func Restore(p RestoreParams) (*Result, error) {
	stage, err := os.MkdirTemp("", "realm-restore-*")
	if err != nil {
		return nil, fmt.Errorf("archive: staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	if err := extract(p.Archive, stage); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(stage, manifestName))
	if err != nil {
		return nil, ErrNoManifest
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("archive: manifest: %w", err)
	}

	members := make([]string, 0, len(m.Files))
	for member, entry := range m.Files {
		sum, err := fileSHA256(filepath.Join(stage, filepath.FromSlash(member)))
		if err != nil {
			return nil, fmt.Errorf("archive: verify %s: %w", member, err)
		}
		if sum != entry.SHA256 {
			return nil, fmt.Errorf("archive: checksum mismatch for %s", member)
		}
		members = append(members, member)
	}
	sort.Strings(members)

	res := &Result{Manifest: &m}
	for _, member := range members {
		src := filepath.Join(stage, filepath.FromSlash(member))
		var dst string
		switch m.Files[member].Kind {
		case KindBolt:
			dst = p.BoltDest
		case KindSQL:
			dst = p.SQLDest
			if dst != "" {
				// A stale WAL would be replayed over the restored file.
				os.Remove(dst + "-wal")
				os.Remove(dst + "-shm")
			}
		case KindText:
			if p.TextDest != "" {
				dst = filepath.Join(p.TextDest, filepath.FromSlash(strings.TrimPrefix(member, "text/")))
			}
		case KindConf:
			if p.ConfDir == "" {
				continue
			}
			dst = filepath.Join(p.ConfDir, filepath.Base(member))
			replace, err := p.shouldReplace(src, dst)
			if err != nil {
				return res, err
			}
			if !replace {
				res.Kept = append(res.Kept, member)
				continue
			}
		}
		if dst == "" {
			continue
		}
		if err := install(src, dst); err != nil {
			return res, err
		}
		res.Restored = append(res.Restored, member)
	}
	return res, nil
}

func (p RestoreParams) shouldReplace(src, dst string) (bool, error) {
	current, err := os.ReadFile(dst)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("archive: read %s: %w", dst, err)
	}
	archived, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("archive: read %s: %w", src, err)
	}
	if bytes.Equal(current, archived) {
		return false, nil
	}
	if p.Resolve == nil {
		return false, nil
	}
	return p.Resolve(filepath.Base(dst), current, archived)
}

// install copies src over dst through a temporary file in dst's directory.
func install(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("archive: create dir for %s: %w", dst, err)
	}
	tmp := dst + ".restore"
	if err := copyFile(src, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: write %s: %w", dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("archive: install %s: %w", dst, err)
	}
	return nil
}

func extract(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("archive: %s: %w", path, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("archive: %s: %w", path, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.FromSlash(hdr.Name)
		if !filepath.IsLocal(name) {
			return fmt.Errorf("archive: unsafe member %q", hdr.Name)
		}
		target := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		_, err = io.Copy(out, tr)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("archive: extract %s: %w", hdr.Name, err)
		}
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// PromptResolver asks on out, reading answers from in: [K]eep the
// current config, [U]se the archived one, or show a [D]iff first.
// End of input keeps the current file.
func PromptResolver(in io.Reader, out io.Writer) Resolver {
	scanner := bufio.NewScanner(in)
	return func(name string, current, archived []byte) (bool, error) {
		for {
			fmt.Fprintf(out, "\nConfig %q differs from the archive.\n[K]eep current  [U]se archived  [D]iff: ", name)
			if !scanner.Scan() {
				return false, scanner.Err()
			}
			answer := strings.ToUpper(strings.TrimSpace(scanner.Text()))
			if answer == "" {
				continue
			}
			switch answer[0] {
			case 'K':
				return false, nil
			case 'U':
				return true, nil
			case 'D':
				lineDiff(string(current), string(archived), out)
			default:
				fmt.Fprintln(out, "Please answer K, U or D.")
			}
		}
	}
}

// lineDiff prints the lines that differ position by position.
func lineDiff(current, archived string, w io.Writer) {
	cur := strings.Split(current, "\n")
	arc := strings.Split(archived, "\n")
	fmt.Fprintln(w, "--- current\n+++ archived")
	for i := 0; i < max(len(cur), len(arc)); i++ {
		var c, a string
		if i < len(cur) {
			c = cur[i]
		}
		if i < len(arc) {
			a = arc[i]
		}
		if c == a {
			continue
		}
		if i < len(cur) {
			fmt.Fprintf(w, "- %s\n", c)
		}
		if i < len(arc) {
			fmt.Fprintf(w, "+ %s\n", a)
		}
	}
}
