package configlink

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/gopasspw/gopass/pkg/appdir"
)

// globMatch implements a glob matcher that supports double-asterisk (**) patterns.
func globMatch(pattern, s string) (bool, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return false, err
	}

	return g.Match(s), nil
}

// expandHome resolves a leading ~ to the current user's home directory.
// It is a read-time projection only: stored condition literals keep the ~.
// Trailing slashes are preserved, gitdir prefix matching depends on them.
func expandHome(p string) string {
	if p == "~" {
		return appdir.UserHome()
	}
	if strings.HasPrefix(p, "~/") {
		return appdir.UserHome() + p[1:]
	}

	return p
}

// normalizeDir reduces any run of trailing slashes to exactly one.
// Used for comparing trigger directories, never for rewriting untouched
// condition literals.
func normalizeDir(dir string) string {
	return strings.TrimRight(dir, "/") + "/"
}

// isBlank reports whether the line contains only whitespace.
func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// isComment reports whether the trimmed line is a # or ; comment.
func isComment(line string) bool {
	t := strings.TrimSpace(line)

	return strings.HasPrefix(t, "#") || strings.HasPrefix(t, ";")
}
