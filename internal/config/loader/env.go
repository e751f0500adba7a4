package loader

import (
	"os"
	"slices"
	"strconv"
	"strings"
)

// EnvLoader loads configuration from environment variables.
//
// A variable named PREFIX_SECTION_SOME_KEY maps to the setting
// section.some_key. Only variables whose section is known are read, so
// unrelated variables sharing the prefix are ignored.
type EnvLoader struct {
	prefix   string            // Environment variable prefix (e.g., "CLICKSTORM_")
	mapping  map[string]string // Env var -> config path
	sections []string
	environ  func() []string
}

// NewEnvLoader creates a new environment variable loader for the given
// sections. The prefix should include the trailing underscore.
func NewEnvLoader(prefix string, sections ...string) *EnvLoader {
	return &EnvLoader{
		prefix:   prefix,
		mapping:  make(map[string]string),
		sections: sections,
		environ:  os.Environ,
	}
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	l.mapping[envVar] = configPath
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// Load reads environment variables and returns a configuration map.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() map[string]any {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		if path, mapped := l.mapping[name]; mapped {
			setByPath(config, path, parseValue(value))
			continue
		}
		if path, ok := l.envToPath(name); ok {
			setByPath(config, path, parseValue(value))
		}
	}

	return config
}

// envToPath converts CLICKSTORM_RECORDER_PATH_MODE to recorder.path_mode.
func (l *EnvLoader) envToPath(env string) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok || key == "" || !slices.Contains(l.sections, section) {
		return "", false
	}
	return section + "." + key, true
}

// parseValue attempts to parse the string value into an appropriate type.
func parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Only values with a decimal point are floats so integers stay integers.
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	// Navigate/create intermediate maps
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	current[parts[len(parts)-1]] = value
}

// SetByPath sets a value in a nested configuration map.
func SetByPath(data map[string]any, path string, value any) {
	setByPath(data, path, value)
}
