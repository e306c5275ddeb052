package ddoc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pelletier/go-toml/v2"
)

// Format identifies a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Load decodes a document. The "_id" member, when it is a string, becomes
// the document identity.
func Load(data []byte, format Format) (*Document, error) {
	root := map[string]interface{}{}

	var err error
	switch format {
	case FormatJSON:
		err = sonic.Unmarshal(data, &root)
	case FormatYAML:
		err = yaml.Unmarshal(data, &root)
	case FormatTOML:
		err = toml.Unmarshal(data, &root)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s document: %w", format, err)
	}

	id, _ := root["_id"].(string)
	return New(id, root), nil
}

// LoadFile reads and decodes a document file. The format follows the file
// extension; a trailing .gz or .zst is decompressed first.
func LoadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	name := strings.ToLower(filepath.Base(path))
	switch filepath.Ext(name) {
	case ".gz":
		raw, err = gunzip(raw)
		name = strings.TrimSuffix(name, ".gz")
	case ".zst":
		raw, err = unzstd(raw)
		name = strings.TrimSuffix(name, ".zst")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decompress document: %w", err)
	}

	format, err := FormatFromExt(filepath.Ext(name))
	if err != nil {
		return nil, err
	}
	return Load(raw, format)
}

// FormatFromExt maps a file extension to a Format.
func FormatFromExt(ext string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("unsupported document extension %q", ext)
}

func gunzip(raw []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func unzstd(raw []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(raw, nil)
}
