package settings

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	lgerrors "github.com/gxo-labs/logguard/pkg/logguard/v1/errors"
	lglog "github.com/gxo-labs/logguard/pkg/logguard/v1/log"
	pkgsettings "github.com/gxo-labs/logguard/pkg/logguard/v1/settings"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// document is the on-disk layout of the settings file.
type document struct {
	DefaultLogSize int32 `yaml:"default_log_size" toml:"default_log_size"`
}

type codec interface {
	decode(data []byte, doc *document) ([]string, error)
	encode(doc document) ([]byte, error)
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte, doc *document) ([]string, error) {
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var unknown []string
	for key := range raw {
		if key != "default_log_size" {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

func (yamlCodec) encode(doc document) ([]byte, error) {
	return yaml.Marshal(doc)
}

type tomlCodec struct{}

func (tomlCodec) decode(data []byte, doc *document) ([]string, error) {
	md, err := toml.Decode(string(data), doc)
	if err != nil {
		return nil, err
	}
	var undecoded []string
	for _, k := range md.Undecoded() {
		undecoded = append(undecoded, k.String())
	}
	return undecoded, nil
}

func (tomlCodec) encode(doc document) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func codecFor(path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}, nil
	case ".toml":
		return tomlCodec{}, nil
	default:
		return nil, lgerrors.NewConfigError(fmt.Sprintf("settings file '%s' must end in .yaml, .yml or .toml", path), nil)
	}
}

// FileStore persists the global default in a YAML or TOML file. The value is
// cached after loading; writes replace the file atomically.
type FileStore struct {
	fs    afero.Fs
	path  string
	codec codec
	log   lglog.Logger

	mu    sync.RWMutex
	value int32
}

// NewFileStore opens the settings file at path on fs. A missing file is not
// an error and reads as 0.
func NewFileStore(fs afero.Fs, path string, log lglog.Logger) (*FileStore, error) {
	c, err := codecFor(path)
	if err != nil {
		return nil, err
	}
	s := &FileStore{fs: fs, path: path, codec: c, log: log}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the settings file location.
func (s *FileStore) Path() string { return s.path }

// Reload rereads the file.
func (s *FileStore) Reload() error {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return lgerrors.NewConfigError(fmt.Sprintf("failed to stat settings file '%s'", s.path), err)
	}
	var doc document
	if exists {
		data, err := afero.ReadFile(s.fs, s.path)
		if err != nil {
			return lgerrors.NewConfigError(fmt.Sprintf("failed to read settings file '%s'", s.path), err)
		}
		undecoded, err := s.codec.decode(data, &doc)
		if err != nil {
			return lgerrors.NewConfigError(fmt.Sprintf("failed to parse settings file '%s'", s.path), err)
		}
		if len(undecoded) > 0 && s.log != nil {
			s.log.Warnf("Settings file '%s' has unknown keys: %s", s.path, strings.Join(undecoded, ", "))
		}
	}
	s.mu.Lock()
	s.value = doc.DefaultLogSize
	s.mu.Unlock()
	return nil
}

func (s *FileStore) GlobalDefaultMB() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// SetGlobalDefaultMB writes the value to a temporary file next to the target
// and renames it into place.
func (s *FileStore) SetGlobalDefaultMB(mb int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.codec.encode(document{DefaultLogSize: mb})
	if err != nil {
		return lgerrors.NewConfigError("failed to encode settings", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return lgerrors.NewConfigError(fmt.Sprintf("failed to create settings directory for '%s'", s.path), err)
	}
	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return lgerrors.NewConfigError(fmt.Sprintf("failed to write settings file '%s'", tmp), err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return lgerrors.NewConfigError(fmt.Sprintf("failed to replace settings file '%s'", s.path), err)
	}
	s.value = mb
	return nil
}

var _ pkgsettings.Store = (*FileStore)(nil)
