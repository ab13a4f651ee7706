package buildenv

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Board configuration keys consulted by the size check.
const (
	KeyMaxProgramSize = "upload.maximum_size"
	KeyMaxDataSize    = "upload.maximum_ram_size"
)

// Board is a board manifest with dotted-key lookup, e.g. "upload.maximum_size".
// A nil *Board behaves as an empty manifest.
type Board struct {
	id     string
	values *viper.Viper
}

// NewBoard returns a board with the given identifier and values. Nested maps
// and dotted keys are both accepted.
func NewBoard(id string, values map[string]any) *Board {
	viperInstance := viper.New()
	for k, v := range values {
		viperInstance.Set(k, v)
	}
	return &Board{id: id, values: viperInstance}
}

// LoadBoard reads a PlatformIO board manifest (JSON). The board identifier is
// the file name without extension.
func LoadBoard(path string) (*Board, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(path)
	viperInstance.SetConfigType("json")
	if err := viperInstance.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading board manifest %s: %w", path, err)
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &Board{id: id, values: viperInstance}, nil
}

// ID returns the board identifier.
func (b *Board) ID() string {
	if b == nil {
		return ""
	}
	return b.id
}

// Get returns the raw value for key, or nil.
func (b *Board) Get(key string) any {
	if b == nil {
		return nil
	}
	return b.values.Get(key)
}

// Int returns the integer value for key, or def when the key is unset.
// String values such as "32256" are converted.
func (b *Board) Int(key string, def int64) int64 {
	if b == nil || !b.values.IsSet(key) {
		return def
	}
	return b.values.GetInt64(key)
}

// Set overrides a value.
func (b *Board) Set(key string, value any) {
	if b == nil {
		return
	}
	b.values.Set(key, value)
}

// Keys returns all keys in the manifest, sorted.
func (b *Board) Keys() []string {
	if b == nil {
		return nil
	}
	keys := b.values.AllKeys()
	sort.Strings(keys)
	return keys
}
