package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultBaseDir = ".promptprim"

// Paths holds resolved filesystem paths for PromptPrim data.
type Paths struct {
	Base   string // ~/.promptprim
	Config string // ~/.promptprim/config.yaml
	Data   string // ~/.promptprim/data
	Logs   string // ~/.promptprim/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If PROMPTPRIM_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("PROMPTPRIM_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// SessionDB returns the default SQLite session database path.
func (p Paths) SessionDB() string {
	return filepath.Join(p.Data, "sessions.db")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// blockedKeys are keys that must never appear in config paths.
var blockedKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// ParseConfigPath splits a dot-separated config path into segments.
// Returns an error if any segment is blocked or empty. Numeric segments
// index into lists, e.g. "groups.0.maxTurns".
func ParseConfigPath(raw string) ([]string, error) {
	if raw == "" {
		return nil, &ConfigError{Message: "empty config path"}
	}
	parts := strings.Split(raw, ".")
	for _, p := range parts {
		if p == "" {
			return nil, &ConfigError{Message: "config path contains empty segment"}
		}
		if blockedKeys[p] {
			return nil, &ConfigError{Message: "config path contains blocked key: " + p}
		}
	}
	return parts, nil
}

// listIndex parses key as an index into a list of length n.
func listIndex(key string, n int) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// GetValueAtPath traverses nested maps and lists using the given path segments.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[key]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, ok := listIndex(key, len(node))
			if !ok {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// SetValueAtPath sets a value in a nested map, creating intermediate maps
// as needed. Existing list elements may be addressed by index; lists are
// never grown. Returns false if an index is out of range.
func SetValueAtPath(root map[string]any, path []string, value any) bool {
	var current any = root
	for _, key := range path[:len(path)-1] {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[key]
			switch next.(type) {
			case map[string]any, []any:
			default:
				ok = false
			}
			if !ok {
				next = map[string]any{}
				node[key] = next
			}
			current = next
		case []any:
			i, ok := listIndex(key, len(node))
			if !ok {
				return false
			}
			if _, isMap := node[i].(map[string]any); !isMap {
				if _, isList := node[i].([]any); !isList {
					node[i] = map[string]any{}
				}
			}
			current = node[i]
		}
	}
	last := path[len(path)-1]
	switch node := current.(type) {
	case map[string]any:
		node[last] = value
		return true
	case []any:
		i, ok := listIndex(last, len(node))
		if !ok {
			return false
		}
		node[i] = value
		return true
	}
	return false
}

// UnsetValueAtPath removes a map value at the given path. Returns true if removed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	parent, ok := GetValueAtPath(root, path[:len(path)-1])
	if !ok {
		return false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}
