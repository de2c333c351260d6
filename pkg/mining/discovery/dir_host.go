package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	goplugin "plugin"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"cuckoominer/pkg/mining/core"
)

const (
	// PluginExt marks engine binaries built for this host
	PluginExt = ".cuckooplugin"

	// EntrySymbol is the constructor every engine plugin must export
	EntrySymbol = "NewEngine"
)

// EngineConstructor is the signature of a plugin's EntrySymbol
type EngineConstructor func(cfg core.WorkerConfig) (core.Engine, error)

// descriptor is the optional sidecar file <stem>.json next to a plugin
type descriptor struct {
	Tag     string `json:"tag"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DirHost discovers plugins in a directory and loads them with the Go
// plugin runtime.
type DirHost struct {
	logger *zap.Logger
	open   func(path string) (*goplugin.Plugin, error)
}

// NewDirHost creates a filesystem plugin host
func NewDirHost(logger *zap.Logger) *DirHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirHost{
		logger: logger.Named("plugin_host"),
		open:   goplugin.Open,
	}
}

// Enumerate scans dir for files ending in .cuckooplugin or .so. Results are
// ordered by file name. Unreadable sidecar descriptors are logged and
// the derived values are used instead.
func (h *DirHost) Enumerate(dir string) ([]Capability, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read plugin dir %s", dir)
	}

	var caps []Capability
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != PluginExt && ext != ".so" {
			continue
		}

		stem := strings.TrimSuffix(name, ext)
		fullPath, err := filepath.Abs(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", name)
		}

		c := Capability{
			Tag:  strings.TrimPrefix(stem, "lib"),
			Path: fullPath,
			Name: stem,
		}

		desc, err := readDescriptor(filepath.Join(dir, stem+".json"))
		if err != nil {
			h.logger.Warn("ignoring plugin descriptor", zap.String("plugin", name), zap.Error(err))
		} else if desc != nil {
			if desc.Tag != "" {
				c.Tag = desc.Tag
			}
			if desc.Name != "" {
				c.Name = desc.Name
			}
			c.Version = desc.Version
		}

		h.logger.Debug("discovered plugin", zap.String("tag", c.Tag), zap.String("path", c.Path))
		caps = append(caps, c)
	}

	return caps, nil
}

// Load opens the plugin at path and calls its exported constructor
func (h *DirHost) Load(path string, cfg core.WorkerConfig) (core.Engine, error) {
	p, err := h.open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open plugin %s", path)
	}

	sym, err := p.Lookup(EntrySymbol)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %s", path)
	}

	var ctor EngineConstructor
	switch fn := sym.(type) {
	case func(core.WorkerConfig) (core.Engine, error):
		ctor = fn
	case *EngineConstructor:
		ctor = *fn
	default:
		return nil, errors.Errorf("plugin %s: %s has type %T", path, EntrySymbol, sym)
	}

	engine, err := construct(ctor, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %s: constructor", path)
	}
	if engine == nil {
		return nil, errors.Errorf("plugin %s: constructor returned no engine", path)
	}
	return engine, nil
}

// construct calls a plugin constructor, turning a panic into an error
func construct(ctor EngineConstructor, cfg core.WorkerConfig) (engine core.Engine, err error) {
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return ctor(cfg)
}

func readDescriptor(path string) (*descriptor, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrapf(err, "parse %s", filepath.Base(path))
	}
	return &d, nil
}
