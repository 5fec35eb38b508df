package configlink

import (
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
)

// ActiveMappings returns the mappings whose gitdir condition would fire for
// the given working directory, in document order. This mirrors how git
// evaluates gitdir conditions: an exact match, a prefix match when the
// pattern ends with a slash, or a glob match when the pattern contains
// wildcards. Conditions written as gitdir/i: are compared case
// insensitively. It is a read-only projection for reporting which profile
// a directory picks up.
func ActiveMappings(d *Document, workdir string) []Mapping {
	out := make([]Mapping, 0, 4)
	for _, m := range d.Mappings() {
		if matchesWorkdir(m.TriggerDir, workdir, m.Fold) {
			out = append(out, m)
		}
	}

	return out
}

func matchesWorkdir(dir, workdir string, fold bool) bool {
	dir = expandHome(dir)
	workdir = strings.TrimSuffix(workdir, "/")
	if fold {
		dir = strings.ToLower(dir)
		workdir = strings.ToLower(workdir)
	}

	if strings.ContainsAny(dir, "*?[") {
		pattern := dir
		// "If the pattern ends with /, ** will be automatically added."
		// https://git-scm.com/docs/git-config#_conditional_includes
		if strings.HasSuffix(pattern, "/") {
			pattern += "**"
		}
		match, err := globMatch(pattern, workdir)
		if err != nil {
			debug.V(1).Log("invalid glob pattern in gitdir condition %q: %s", dir, err)

			return false
		}

		return match
	}

	if strings.TrimSuffix(dir, "/") == workdir {
		return true
	}

	return strings.HasSuffix(dir, "/") && strings.HasPrefix(workdir+"/", dir)
}
