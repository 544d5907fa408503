package kifu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dsnet/compress/bzip2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

type Format int

const (
	FormatCSA Format = iota + 1
	FormatKIF
	FormatKI2
	FormatJKF
	FormatUSI
)

func (f Format) String() string {
	switch f {
	case FormatCSA:
		return "csa"
	case FormatKIF:
		return "kif"
	case FormatKI2:
		return "ki2"
	case FormatJKF:
		return "jkf"
	case FormatUSI:
		return "usi"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Ext is the file extension written for f.
func (f Format) Ext() string {
	if f == FormatUSI {
		return ".usi"
	}
	return "." + f.String()
}

func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "csa":
		return FormatCSA, nil
	case "kif", "kifu":
		return FormatKIF, nil
	case "ki2", "ki2u":
		return FormatKI2, nil
	case "jkf", "json":
		return FormatJKF, nil
	case "usi", "sfen":
		return FormatUSI, nil
	}
	return 0, fmt.Errorf("unknown format %q", name)
}

// FormatFromPath picks the format from the extension, looking through a
// trailing .bz2.
func FormatFromPath(path string) (Format, bool, error) {
	compressed := strings.EqualFold(filepath.Ext(path), ".bz2")
	if compressed {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return 0, false, fmt.Errorf("no extension: %s", path)
	}
	f, err := ParseFormat(ext)
	return f, compressed, err
}

// utf8Only reports whether the extension names a format that is never
// written in Shift-JIS.
func utf8Only(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".bz2") {
		path = strings.TrimSuffix(path, filepath.Ext(path))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kifu", ".ki2u", ".jkf", ".json":
		return true
	}
	return false
}

// DecodeText strips a BOM and decodes Shift-JIS input. UTF-8 is kept as is.
func DecodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	reader := transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(decoded) {
		return "", errors.New("failed to decode Shift-JIS text")
	}
	return string(decoded), nil
}

// EncodeText converts text to Shift-JIS when shiftJIS is set.
func EncodeText(text string, shiftJIS bool) ([]byte, error) {
	if !shiftJIS {
		return []byte(text), nil
	}
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(text))
	if err != nil {
		return nil, err
	}
	return encoded, nil
}

// ReadText reads and decodes a kifu file, decompressing *.bz2.
func ReadText(path string) (string, Format, error) {
	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return "", 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	var r io.Reader = file
	if compressed {
		bz, err := bzip2.NewReader(file, nil)
		if err != nil {
			return "", 0, err
		}
		defer bz.Close()
		r = bz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	if utf8Only(path) {
		if !utf8.Valid(data) {
			return "", 0, fmt.Errorf("%s: not UTF-8", path)
		}
		return strings.TrimPrefix(string(data), "\ufeff"), format, nil
	}
	text, err := DecodeText(data)
	if err != nil {
		return "", 0, err
	}
	return text, format, nil
}

// Parse reads text in the given format without normalizing it.
func Parse(text string, format Format) (*Record, error) {
	switch format {
	case FormatCSA:
		return ParseCSA(text)
	case FormatKIF:
		return ParseKIF(text)
	case FormatKI2:
		return ParseKI2(text)
	case FormatJKF:
		return ParseJKF([]byte(text))
	case FormatUSI:
	}
	return nil, fmt.Errorf("cannot parse %s", format)
}

// Render writes a normalized record in the given format.
func Render(rec *Record, format Format) (string, error) {
	switch format {
	case FormatCSA:
		return RenderCSA(rec)
	case FormatKIF:
		return RenderKIF(rec)
	case FormatKI2:
		return RenderKI2(rec)
	case FormatJKF:
		data, err := RenderJKF(rec)
		return string(data), err
	case FormatUSI:
		line, err := RenderUSI(rec)
		return line + "\n", err
	}
	return "", fmt.Errorf("cannot render %s", format)
}

// LoadFile reads, parses and normalizes one file.
func LoadFile(path string) (*Record, error) {
	text, format, err := ReadText(path)
	if err != nil {
		return nil, err
	}
	rec, err := Parse(text, format)
	if err != nil {
		return nil, err
	}
	if err := Normalize(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteFile renders rec in the format named by path and writes it,
// compressing *.bz2. KIF and KI2 output is Shift-JIS when shiftJIS is set.
func WriteFile(path string, rec *Record, shiftJIS bool) (int, error) {
	format, compressed, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	text, err := Render(rec, format)
	if err != nil {
		return 0, err
	}
	sjis := shiftJIS && !utf8Only(path) && (format == FormatKIF || format == FormatKI2)
	data, err := EncodeText(text, sjis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if compressed {
		bz, err := bzip2.NewWriter(file, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			return 0, err
		}
		if _, err := bz.Write(data); err != nil {
			return 0, err
		}
		if err := bz.Close(); err != nil {
			return 0, err
		}
	} else if _, err := file.Write(data); err != nil {
		return 0, err
	}
	return len(data), file.Close()
}

// CollectKifu lists every file under root with a readable kifu extension.
func CollectKifu(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if format, _, err := FormatFromPath(path); err == nil && format != FormatUSI {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
