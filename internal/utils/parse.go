package utils

import (
	"maps"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
)

// LoadTOMLFile decodes a TOML file into v.
func LoadTOMLFile(path string, v any) error {
	if _, err := toml.DecodeFile(path, v); err != nil {
		log.Warnf("TOML parsing error in config file %s: %v. Attempting partial recovery...", path, err)
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

// ParseTOMLWithRecovery decodes a TOML file into a generic map. When the file
// does not parse as a whole, each table is decoded on its own and the ones
// that parse are kept.
func ParseTOMLWithRecovery(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}

	parsed := make(map[string]any)
	_, docErr := toml.Decode(string(data), &parsed)
	if docErr == nil {
		return parsed, nil
	}

	recovered := make(map[string]any)
	for _, chunk := range splitTables(string(data)) {
		part := make(map[string]any)
		if _, err := toml.Decode(chunk, &part); err != nil {
			log.Debugf("dropping unparseable table: %v", err)
			continue
		}
		maps.Copy(recovered, part)
	}
	if len(recovered) == 0 {
		return nil, errors.Wrapf(docErr, "could not parse %s", path)
	}
	log.Warnf("Recovered %d section(s) from %s: %v", len(recovered), path, docErr)
	return recovered, nil
}

// splitTables cuts a TOML document at each table header.
func splitTables(doc string) []string {
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(doc, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "[") && cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// ExtractSection returns a table from parsed TOML data.
func ExtractSection(data map[string]any, name string) (map[string]any, bool) {
	section, ok := data[name].(map[string]any)
	return section, ok
}

// ExtractInt returns an integer value; TOML decodes integers as int64.
func ExtractInt(data map[string]any, key string) (int, bool) {
	if val, ok := data[key].(int64); ok {
		return int(val), true
	}
	return 0, false
}

// ExtractFloat64 returns a float value, accepting integers too since TOML
// writes 50.0 and 50 differently.
func ExtractFloat64(data map[string]any, key string) (float64, bool) {
	switch val := data[key].(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func ExtractString(data map[string]any, key string) (string, bool) {
	val, ok := data[key].(string)
	return val, ok
}

func ExtractBool(data map[string]any, key string) (bool, bool) {
	val, ok := data[key].(bool)
	return val, ok
}
