package discovery

import (
	"fmt"
	"sync"

	"cuckoominer/pkg/mining/core"
)

// Registry holds the result of a single plugin directory scan. It is safe
// for concurrent use; reports may be read while a worker is being built.
type Registry struct {
	host Host

	mutex   sync.RWMutex
	dir     string
	scanned bool
	caps    []Capability
}

// NewRegistry creates a registry backed by host
func NewRegistry(host Host) *Registry {
	return &Registry{host: host}
}

// Scan enumerates dir through the host. A registry scans at most once;
// later calls return an error rather than silently rescanning.
func (r *Registry) Scan(dir string) error {
	if r.host == nil {
		return core.WrapError(core.ErrCodePluginNotFound, nil, "no plugin host configured")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.scanned {
		return core.WrapError(core.ErrCodePluginNotFound, nil, "plugin registry already scanned "+r.dir)
	}

	caps, err := r.host.Enumerate(dir)
	if err != nil {
		return core.WrapError(core.ErrCodePluginNotFound, err, "scanning "+dir)
	}

	r.dir = dir
	r.caps = caps
	r.scanned = true
	return nil
}

// Scanned reports whether Scan has succeeded
func (r *Registry) Scanned() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.scanned
}

// Dir returns the scanned directory
func (r *Registry) Dir() string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.dir
}

// Host returns the host the registry enumerates through
func (r *Registry) Host() Host {
	return r.host
}

// Capabilities returns every discovered capability in host order
func (r *Registry) Capabilities() []Capability {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]Capability, len(r.caps))
	copy(result, r.caps)
	return result
}

// Filter returns the capabilities whose tag equals tag exactly, in host order
func (r *Registry) Filter(tag string) []Capability {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.filter(tag)
}

func (r *Registry) filter(tag string) []Capability {
	var matches []Capability
	for _, c := range r.caps {
		if c.Tag == tag {
			matches = append(matches, c)
		}
	}
	return matches
}

// Select picks the first capability matching tag
func (r *Registry) Select(tag string) (Capability, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.scanned {
		return Capability{}, core.WrapError(core.ErrCodePluginNotFound, nil, "registry not scanned")
	}

	matches := r.filter(tag)
	if len(matches) == 0 {
		return Capability{}, core.WrapError(core.ErrCodePluginNotFound, nil,
			fmt.Sprintf("no plugin tagged %q in %s (%d installed)", tag, r.dir, len(r.caps)))
	}
	return matches[0], nil
}
