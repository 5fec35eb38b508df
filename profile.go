package configlink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// DefaultTemplate is the profile fragment rendered by Store.Write when no
// custom template is set. Placeholders are substituted literally.
const DefaultTemplate = `[user]
	name = {{USER_NAME}}
	email = {{USER_EMAIL}}
`

// Identity describes one Git identity to materialize as a profile fragment.
// SigningKey and SSHCommand are optional.
type Identity struct {
	Name       string
	Email      string
	SigningKey string
	SSHCommand string
}

// Store materializes identity profile fragments in a directory, typically
// ~/.config/git/profiles. The fragments are what the conditional includes
// managed by this package point at. The store never parses a fragment back;
// existing files are simply overwritten on Write.
type Store struct {
	// Dir is the profile directory. A leading ~ is expanded on use.
	Dir string
	// Template overrides DefaultTemplate when non-empty. It may use the
	// {{USER_NAME}} and {{USER_EMAIL}} placeholders.
	Template string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the on-disk path of the named profile.
func (s *Store) Path(name string) string {
	return filepath.Join(expandHome(s.Dir), name)
}

// Exists reports whether the named profile file is present.
func (s *Store) Exists(name string) bool {
	return fileExists(s.Path(name))
}

// List returns the names of all profiles currently present in the store.
// A missing store directory yields an empty list.
func (s *Store) List() ([]string, error) {
	ents, err := os.ReadDir(expandHome(s.Dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile dir %s: %w", s.Dir, err)
	}

	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}

// Write renders the identity into a profile fragment and writes it to the
// store, creating the directory as needed. It returns the path of the
// written file, ready to be handed to AddInclude.
func (s *Store) Write(name string, id Identity) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProfileName, name)
	}

	dir := expandHome(s.Dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrCreateConfigDir, dir, err)
	}

	p := filepath.Join(dir, name)
	if err := writeFileAtomic(p, []byte(s.render(id))); err != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrWriteConfig, p, err)
	}

	debug.V(1).Log("wrote profile %q to %s", name, p)

	return p, nil
}

func (s *Store) render(id Identity) string {
	tpl := s.Template
	if tpl == "" {
		tpl = DefaultTemplate
	}

	body := strings.NewReplacer(
		"{{USER_NAME}}", id.Name,
		"{{USER_EMAIL}}", id.Email,
	).Replace(tpl)

	if id.SigningKey != "" {
		body += fmt.Sprintf("[user]\n\tsigningkey = %s\n[commit]\n\tgpgsign = true\n", id.SigningKey)
	}
	if id.SSHCommand != "" {
		body += fmt.Sprintf("[core]\n\tsshCommand = %s\n", id.SSHCommand)
	}

	return body
}
