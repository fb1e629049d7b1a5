package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"

	"github.com/blueprint-desktop/exthost/internal/bridge"
	"github.com/blueprint-desktop/exthost/internal/infrastructure/logging"
	"github.com/blueprint-desktop/exthost/internal/shared/paths"
)

// Keys are slash-separated segments, each starting alphanumeric. The
// pattern leaves no room for traversal.
var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(/[a-zA-Z0-9][a-zA-Z0-9._-]*)*$`)

const valueSuffix = ".json"

// Provider is a per-extension JSON key/value store persisted under the
// extension's storage directory. Every extension sees only its own
// namespace.
type Provider struct {
	root string
	log  *logging.Logger

	mu sync.Mutex
}

// New creates a storage provider rooted at the extensions directory
func New(root string, log *logging.Logger) *Provider {
	return &Provider{
		root: root,
		log:  log.Component("provider.storage"),
	}
}

// Execute runs a storage operation
func (p *Provider) Execute(ctx context.Context, call *bridge.Call) (interface{}, error) {
	dir, err := p.dirFor(call.ExtensionID)
	if err != nil {
		return nil, err
	}

	switch call.Method {
	case "get":
		return p.get(dir, call)
	case "set":
		return p.set(dir, call)
	case "delete":
		return p.delete(dir, call)
	case "list":
		return p.list(dir, call)
	default:
		return nil, fmt.Errorf("unknown storage method: %s", call.Method)
	}
}

func (p *Provider) dirFor(extensionID string) (string, error) {
	if err := paths.ValidateExtensionID(extensionID); err != nil {
		return "", err
	}
	return paths.For(p.root, extensionID).Storage(), nil
}

func (p *Provider) get(dir string, call *bridge.Call) (interface{}, error) {
	key, err := storageKey(call)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, key+valueSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	var value interface{}
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return value, nil
}

func (p *Provider) set(dir string, call *bridge.Call) (interface{}, error) {
	key, err := storageKey(call)
	if err != nil {
		return nil, err
	}
	value, err := call.Value(1)
	if err != nil {
		return nil, err
	}

	data, err := sonic.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	path := filepath.Join(dir, key+valueSuffix)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", key, err)
	}

	return map[string]interface{}{"stored": true, "key": key}, nil
}

func (p *Provider) delete(dir string, call *bridge.Call) (interface{}, error) {
	key, err := storageKey(call)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = os.Remove(filepath.Join(dir, key+valueSuffix))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("delete %s: %w", key, err)
	}
	return map[string]interface{}{"deleted": err == nil, "key": key}, nil
}

func (p *Provider) list(dir string, call *bridge.Call) (interface{}, error) {
	pattern := call.OptionalString(0, "**")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern: %s", pattern)
	}

	keys := []string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, valueSuffix) {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), valueSuffix)
		match, matchErr := doublestar.Match(pattern, key)
		if matchErr != nil {
			return matchErr
		}
		if match {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list keys: %w", err)
	}

	sort.Strings(keys)
	return map[string]interface{}{"keys": keys, "count": len(keys)}, nil
}

func storageKey(call *bridge.Call) (string, error) {
	key, err := call.String(0)
	if err != nil {
		return "", err
	}
	if !keyPattern.MatchString(key) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return key, nil
}
