// Package config loads process-level settings and the durable strategy
// store's raw documents from a pluggable backend (local file, Consul, etcd,
// Zookeeper), expanding environment variable references along the way.
//
// This package does not own a single monolithic Config type: the loader
// here returns a generic decoded tree that pkg/strategy further validates
// (JSON Schema) and decodes (mapstructure) into typed Strategy /
// GlobalSettings values. That split keeps the boot-time immutable-cache
// discipline entirely inside pkg/strategy, where the builder/handle type
// distinction lives.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/etcd"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// BackendType selects which koanf provider backs the loader.
type BackendType string

const (
	BackendFile      BackendType = "file"
	BackendConsul    BackendType = "consul"
	BackendEtcd      BackendType = "etcd"
	BackendZookeeper BackendType = "zookeeper"
)

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	Type BackendType

	// Path is the file path (BackendFile), the consul/zookeeper key
	// (BackendConsul/BackendZookeeper), or the etcd key (BackendEtcd).
	Path string

	// Endpoints is the backend's connection address list; defaults are
	// applied per backend type when empty.
	Endpoints []string

	// Watch starts a background watcher (where the backend supports it)
	// that re-reads and re-expands the document on change. The loader
	// itself never mutates any already-handed-out cache; callers observe
	// changes only via OnChange and must build a fresh cache from it.
	Watch bool

	OnChange func(map[string]any, error)
}

// Loader reads a single structured document (YAML, for file/zookeeper; a
// native key/value tree for consul/etcd) from the configured backend.
type Loader struct {
	koanf    *koanf.Koanf
	options  LoaderOptions
	parser   *yaml.YAML
	stopChan chan struct{}
}

// NewLoader constructs a Loader, defaulting Type to BackendFile and filling
// in well-known default endpoints per backend when Endpoints is empty.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Type == "" {
		opts.Type = BackendFile
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if len(opts.Endpoints) == 0 {
		switch opts.Type {
		case BackendConsul:
			opts.Endpoints = []string{"localhost:8500"}
		case BackendEtcd:
			opts.Endpoints = []string{"localhost:2379"}
		case BackendZookeeper:
			opts.Endpoints = []string{"localhost:2181"}
		}
	}

	return &Loader{
		koanf:    koanf.New("."),
		options:  opts,
		parser:   yaml.Parser(),
		stopChan: make(chan struct{}),
	}, nil
}

// Load reads the document, expands environment variable references, and
// returns it as a generic tree. If Watch is set, a background goroutine
// re-loads on backend change and invokes OnChange with the newly expanded
// tree (or an error) — it never mutates the tree already returned here.
func (l *Loader) Load() (map[string]any, error) {
	provider, err := l.newProvider()
	if err != nil {
		return nil, err
	}

	parser := l.documentParser()
	if err := l.koanf.Load(provider, parser); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", l.options.Type, err)
	}

	expanded, err := l.expandEnvVars()
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	if l.options.Watch {
		go l.watch(provider)
	}

	return expanded, nil
}

func (l *Loader) newProvider() (koanf.Provider, error) {
	switch l.options.Type {
	case BackendFile:
		return file.Provider(l.options.Path), nil

	case BackendConsul:
		consulConfig := api.DefaultConfig()
		consulConfig.Address = l.options.Endpoints[0]
		return consul.Provider(consul.Config{
			Cfg: consulConfig,
			Key: l.options.Path,
		}), nil

	case BackendEtcd:
		return etcd.Provider(etcd.Config{
			Endpoints:   l.options.Endpoints,
			DialTimeout: 5 * time.Second,
			Key:         l.options.Path,
		}), nil

	case BackendZookeeper:
		return NewZookeeperProvider(l.options.Endpoints, l.options.Path)

	default:
		return nil, fmt.Errorf("unsupported config backend: %s", l.options.Type)
	}
}

func (l *Loader) documentParser() koanf.Parser {
	if l.options.Type == BackendFile || l.options.Type == BackendZookeeper {
		return l.parser
	}
	return nil
}

type watcher interface {
	Watch(cb func(event interface{}, err error)) error
}

func (l *Loader) watch(provider koanf.Provider) {
	w, ok := provider.(watcher)
	if !ok {
		slog.Warn("config backend does not support watching", "backend", l.options.Type)
		return
	}

	slog.Info("config watcher started", "backend", l.options.Type)

	err := w.Watch(func(event interface{}, err error) {
		select {
		case <-l.stopChan:
			return
		default:
		}

		if err != nil {
			if l.options.OnChange != nil {
				l.options.OnChange(nil, fmt.Errorf("watch error: %w", err))
			}
			return
		}

		fresh := koanf.New(".")
		if err := fresh.Load(provider, l.documentParser()); err != nil {
			if l.options.OnChange != nil {
				l.options.OnChange(nil, fmt.Errorf("reload failed: %w", err))
			}
			return
		}
		l.koanf = fresh

		expanded, err := l.expandEnvVars()
		if err != nil {
			if l.options.OnChange != nil {
				l.options.OnChange(nil, fmt.Errorf("reload expansion failed: %w", err))
			}
			return
		}

		if l.options.OnChange != nil {
			l.options.OnChange(expanded, nil)
		} else {
			slog.Warn("config change detected but no OnChange handler registered")
		}
	})
	if err != nil {
		slog.Warn("config watch stopped", "backend", l.options.Type, "error", err)
	}
}

func (l *Loader) expandEnvVars() (map[string]any, error) {
	expanded := ExpandEnvVarsInData(l.koanf.Raw())
	m, ok := expanded.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected type after environment expansion")
	}

	fresh := koanf.New(".")
	if err := fresh.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to reload expanded config: %w", err)
	}
	l.koanf = fresh

	return m, nil
}

// Stop ends any background watch goroutine started by Load.
func (l *Loader) Stop() {
	close(l.stopChan)
}

// ParseBackendType validates a string against the known backend types.
func ParseBackendType(s string) (BackendType, error) {
	switch s {
	case "file":
		return BackendFile, nil
	case "consul":
		return BackendConsul, nil
	case "etcd":
		return BackendEtcd, nil
	case "zookeeper", "zk":
		return BackendZookeeper, nil
	default:
		return "", fmt.Errorf("invalid config backend: %s (valid: file, consul, etcd, zookeeper)", s)
	}
}
