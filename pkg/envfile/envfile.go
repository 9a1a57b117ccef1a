package envfile

import (
	"fmt"
	"os"
	"strings"
)

// Recognized keys in the gateway secrets file.
const (
	KeyAPIKey       = "ANTHROPIC_API_KEY"
	KeyAPIKeySecret = "ANTHROPIC_API_KEY_SECRET"
	KeyGatewayToken = "OPENCLAW_GATEWAY_TOKEN"
	KeyImage        = "OPENCLAW_IMAGE"
	KeyBind         = "OPENCLAW_BIND"
	KeyPort         = "OPENCLAW_PORT"
	KeyBridgePort   = "OPENCLAW_BRIDGE_PORT"
)

// placeholders are values shipped in .env templates that must be replaced
// by the operator before the gateway can start.
var placeholders = []string{
	"changeme",
	"your-anthropic-api-key",
	"your-api-key-here",
	"sk-ant-xxxxxxxx",
	"REPLACE_ME",
}

// File is an in-memory copy of a line-oriented KEY=VALUE secrets file.
// Comments, blank lines, and unrecognized entries are preserved verbatim
// across a Load/Set/Save round trip.
type File struct {
	path  string
	lines []string
}

// Load reads the secrets file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	content := strings.TrimRight(string(data), "\n")
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}

	return &File{path: path, lines: lines}, nil
}

// Path returns the on-disk location of the file.
func (f *File) Path() string {
	return f.path
}

// Get returns the value for key, or "" if the key is absent. The last
// assignment wins, matching shell sourcing semantics.
func (f *File) Get(key string) string {
	value := ""
	for _, line := range f.lines {
		k, v, ok := splitLine(line)
		if ok && k == key {
			value = v
		}
	}
	return value
}

// Has reports whether key is present with a non-empty value.
func (f *File) Has(key string) bool {
	return f.Get(key) != ""
}

// Set assigns key=value using a strip-then-append pattern: every existing
// assignment of key is removed before the new line is appended, so the file
// never accumulates duplicate keys.
func (f *File) Set(key, value string) {
	kept := f.lines[:0]
	for _, line := range f.lines {
		if k, _, ok := splitLine(line); ok && k == key {
			continue
		}
		kept = append(kept, line)
	}
	f.lines = append(kept, fmt.Sprintf("%s=%s", key, value))
}

// Save writes the file back with owner-only permissions.
func (f *File) Save() error {
	content := strings.Join(f.lines, "\n")
	if content != "" {
		content += "\n"
	}
	if err := os.WriteFile(f.path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	return nil
}

// IsPlaceholder reports whether value is empty or one of the template
// placeholders an operator is expected to replace.
func IsPlaceholder(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	for _, p := range placeholders {
		if trimmed == p {
			return true
		}
	}
	return false
}

// splitLine parses a KEY=VALUE line, ignoring comments and blanks. Values
// may be wrapped in single or double quotes.
func splitLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", "", false
	}
	key = strings.TrimSpace(trimmed[:idx])
	value = strings.TrimSpace(trimmed[idx+1:])
	value = strings.Trim(value, `"'`)
	return key, value, true
}
