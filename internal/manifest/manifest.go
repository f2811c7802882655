// Package manifest loads and validates the declarative game list.
//
// The manifest is the single input describing what to build: an ordered
// sequence of game records. Order is preserved because it doubles as the
// display order on the generated index page.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/arcadebuilder/internal/errors"
)

// GameSpec describes a single game to build and publish.
// Immutable for the duration of a run.
type GameSpec struct {
	// Name is the unique identifier, also used as URL path segment and
	// public directory name. Must be a safe path component.
	Name string `yaml:"name"`

	// RepoURL is the game source repository.
	RepoURL string `yaml:"repo_url"`

	// Branch optionally pins a branch; empty means the remote default.
	Branch string `yaml:"branch,omitempty"`

	// Description is shown on the index page; markdown is allowed.
	Description string `yaml:"description,omitempty"`

	// Tags is an ordered list of free-form labels.
	Tags []string `yaml:"tags,omitempty"`

	// BuildCommand is the opaque shell command producing the game's output
	// directory. Interpreted only by the build executor.
	BuildCommand string `yaml:"build_command"`

	// Auth optionally configures repository access.
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig configures repository authentication.
type AuthConfig struct {
	Type     string `yaml:"type"` // "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// Manifest is the parsed, validated game list in file order.
type Manifest struct {
	Games []GameSpec `yaml:"games"`
}

// Load reads and validates a manifest file. Any validation failure rejects
// the whole manifest; no partial list is ever returned.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ManifestError("failed to read manifest").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// Parse validates manifest bytes. See Load.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.ManifestError("failed to parse manifest").
			WithCause(err).
			Build()
	}

	if len(m.Games) == 0 {
		return nil, errors.ManifestError("manifest contains no games").Build()
	}

	seen := make(map[string]struct{}, len(m.Games))
	for i, g := range m.Games {
		if g.Name == "" {
			return nil, errors.ManifestError("game entry missing name").
				WithContext("index", i).
				Build()
		}
		if err := ValidateName(g.Name); err != nil {
			return nil, err
		}
		if g.RepoURL == "" {
			return nil, errors.ManifestError("game entry missing repo_url").
				WithContext("name", g.Name).
				Build()
		}
		if g.BuildCommand == "" {
			return nil, errors.ManifestError("game entry missing build_command").
				WithContext("name", g.Name).
				Build()
		}
		if _, dup := seen[g.Name]; dup {
			return nil, errors.ManifestError("duplicate game name").
				WithContext("name", g.Name).
				Build()
		}
		seen[g.Name] = struct{}{}
	}

	return &m, nil
}

// ValidateName checks that a game name is safe to use as a filesystem
// directory and URL path segment. Names are compared in NFC form so that
// visually identical but differently composed names cannot alias each other.
func ValidateName(name string) error {
	normalized := norm.NFC.String(name)
	if normalized != name {
		return errors.ManifestError("game name is not NFC-normalized").
			WithContext("name", name).
			Build()
	}
	if len(name) > 64 {
		return errors.ManifestError("game name too long (max 64)").
			WithContext("name", name).
			Build()
	}
	if strings.HasPrefix(name, ".") {
		return errors.ManifestError("game name must not start with a dot").
			WithContext("name", name).
			Build()
	}
	for _, r := range name {
		if !isNameRune(r) {
			return errors.ManifestError(fmt.Sprintf("game name contains unsafe character %q", r)).
				WithContext("name", name).
				Build()
		}
	}
	return nil
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.':
		return true
	}
	return false
}
