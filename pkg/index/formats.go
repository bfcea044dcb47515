package index

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrUnknownFormat is returned for data files with an unsupported extension.
var ErrUnknownFormat = errors.New("unknown place data format")

// FileFormat represents the supported place data file formats
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatTOML               // [[place]] tables
	FormatMsgpack            // msgpack array of places
)

// FormatInfo contains metadata about a data file format
type FormatInfo struct {
	Format      FileFormat
	Description string
	Extensions  []string
}

var supportedFormats = map[FileFormat]FormatInfo{
	FormatTOML: {
		Format:      FormatTOML,
		Description: "TOML place list",
		Extensions:  []string{".toml"},
	},
	FormatMsgpack: {
		Format:      FormatMsgpack,
		Description: "msgpack place list",
		Extensions:  []string{".msgpack", ".mpk"},
	},
}

// placeFile is the TOML document layout.
type placeFile struct {
	Place []Place `toml:"place"`
}

// DetectFormat picks the format from the file extension.
func DetectFormat(filename string) (FileFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for format, info := range supportedFormats {
		for _, e := range info.Extensions {
			if e == ext {
				return format, nil
			}
		}
	}
	return FormatUnknown, errors.Wrapf(ErrUnknownFormat, "file %s", filename)
}

// GetFormatInfo returns information about a specific format
func GetFormatInfo(format FileFormat) (FormatInfo, bool) {
	info, exists := supportedFormats[format]
	return info, exists
}

// ReadFile decodes every place in filename.
func ReadFile(filename string) ([]Place, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatTOML:
		var doc placeFile
		if _, err := toml.DecodeFile(filename, &doc); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", filename)
		}
		return doc.Place, nil
	case FormatMsgpack:
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", filename)
		}
		var ps []Place
		if err := msgpack.Unmarshal(data, &ps); err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", filename)
		}
		return ps, nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "file %s", filename)
}

// LoadFile reads filename into ix and returns the number of places added.
// Repeated ids inside the file are skipped with a warning.
func LoadFile(ix *Index, filename string) (int, error) {
	ps, err := ReadFile(filename)
	if err != nil {
		return 0, err
	}

	seen := utils.NewSeenFilter()
	unique := make([]Place, 0, len(ps))
	for _, p := range ps {
		if !seen.ShouldInclude(p.ID) {
			log.Warnf("Skipping repeated place id %s in %s", p.ID, filename)
			continue
		}
		unique = append(unique, p)
	}

	if err := ix.AddAll(unique); err != nil {
		return 0, errors.Wrapf(err, "failed to index %s", filename)
	}
	log.Debugf("Loaded %d places from %s", len(unique), filename)
	return len(unique), nil
}

// SaveFile writes ps to filename in the format its extension names, creating
// the parent directory if needed.
func SaveFile(filename string, ps []Place) error {
	format, err := DetectFormat(filename)
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(filename)); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", filename)
	}

	switch format {
	case FormatTOML:
		if err := utils.SaveTOMLFile(placeFile{Place: ps}, filename); err != nil {
			return errors.Wrapf(err, "failed to write %s", filename)
		}
		return nil
	case FormatMsgpack:
		data, err := msgpack.Marshal(ps)
		if err != nil {
			return errors.Wrapf(err, "failed to encode %s", filename)
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return errors.Wrapf(err, "failed to write %s", filename)
		}
		return nil
	}
	return errors.Wrapf(ErrUnknownFormat, "file %s", filename)
}
