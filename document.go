package configlink

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/gopasspw/gopass/pkg/debug"
	"github.com/gopasspw/gopass/pkg/set"
)

var (
	reIncludeIf = regexp.MustCompile(`^\[includeIf\s+"gitdir(/i)?:([^"]+)"\]\s*$`)
	reSection   = regexp.MustCompile(`^\[([^\]]+)\]\s*$`)
	rePathLine  = regexp.MustCompile(`^\s*path\s*=\s*(.+)$`)
	reEntry     = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*=\s*(.*)$`)
)

const (
	includeHeaderTpl = "[includeIf \"gitdir:%s\"]"
	pathEntryTpl     = "\tpath = %s"
)

// Document is the in-memory form of a Git config file, split into an
// ordered sequence of sections. Every input line is retained verbatim so
// that an unmodified document serializes back to the exact input bytes.
// Only includeIf sections with a gitdir condition are interpreted; all
// other content is opaque.
//
// A Document is not safe for concurrent use.
type Document struct {
	sections     []*section
	finalNewline bool
}

type sectionKind int

const (
	kindPreamble sectionKind = iota
	kindPlain
	kindIncludeIf
)

// section holds the raw lines from its header up to (and including) any
// blank or comment lines that trail it. The preamble pseudo-section carries
// content preceding the first header.
type section struct {
	kind  sectionKind
	line  int // 1-based header line in the parsed source, 0 if appended
	lines []string

	// plain sections
	name    string
	entries []entry

	// includeIf sections
	dir      string // gitdir operand as written, "gitdir:" or "gitdir/i:" prefix stripped
	fold     bool   // condition uses the case-insensitive gitdir/i: form
	profile  string // value of the path entry
	pathLine int    // index into lines of the path entry
}

type entry struct {
	key   string
	value string
}

// Mapping is the derived view of one conditional include: the directory
// that triggers it and the profile file it loads. TriggerDir is the operand
// exactly as written in the condition (a leading ~ is not expanded). Fold
// is set for the case-insensitive gitdir/i: condition form.
type Mapping struct {
	TriggerDir  string
	ProfilePath string
	Line        int
	Fold        bool
}

// MappingStatus annotates a Mapping with existence checks. A missing
// profile file is a warning for the caller to surface, never a reason to
// remove the mapping.
type MappingStatus struct {
	Mapping
	DirExists     bool
	ProfileExists bool
}

// Parse reads a config document from r. It fails fast on an includeIf
// section that has no path entry and never returns a partial document.
func Parse(r io.Reader) (*Document, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return ParseBytes(buf)
}

// ParseBytes parses raw config file bytes. Empty input yields an empty
// document, so a missing file needs no special-casing by callers.
func ParseBytes(buf []byte) (*Document, error) {
	d := &Document{}

	text := string(buf)
	if text == "" {
		return d, nil
	}

	d.finalNewline = strings.HasSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	if d.finalNewline {
		lines = lines[:len(lines)-1]
	}

	for i := 0; i < len(lines); {
		line := lines[i]

		if m := reIncludeIf.FindStringSubmatch(line); m != nil {
			sec, next, err := scanIncludeIf(lines, i, m[2], m[1] != "")
			if err != nil {
				return nil, err
			}
			d.sections = append(d.sections, sec)
			i = next

			continue
		}

		if m := reSection.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			sec, next := scanPlain(lines, i, m[1])
			d.sections = append(d.sections, sec)
			i = next

			continue
		}

		// content before the first header, or a bracket line that is not a
		// well-formed header (kept opaque, never reformatted)
		sec := &section{kind: kindPreamble, line: i + 1}
		sec.lines = append(sec.lines, lines[i])
		i++
		for ; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "["); i++ {
			sec.lines = append(sec.lines, lines[i])
		}
		d.sections = append(d.sections, sec)
	}

	debug.V(3).Log("parsed %d sections, %d mappings", len(d.sections), len(d.Mappings()))

	return d, nil
}

// scanIncludeIf consumes an includeIf section starting at the header line
// lines[i]. Blank and comment lines between the header and the path entry
// are kept verbatim. A section without a path entry is malformed.
func scanIncludeIf(lines []string, i int, dir string, fold bool) (*section, int, error) {
	sec := &section{
		kind:     kindIncludeIf,
		line:     i + 1,
		dir:      dir,
		fold:     fold,
		pathLine: -1,
		lines:    []string{lines[i]},
	}

	j := i + 1
	for ; j < len(lines); j++ {
		if strings.HasPrefix(strings.TrimSpace(lines[j]), "[") {
			break
		}
		sec.lines = append(sec.lines, lines[j])

		if sec.pathLine >= 0 || isBlank(lines[j]) || isComment(lines[j]) {
			continue
		}
		if m := rePathLine.FindStringSubmatch(lines[j]); m != nil {
			sec.profile = strings.Trim(strings.TrimSpace(m[1]), `"`)
			sec.pathLine = len(sec.lines) - 1
		}
	}

	if sec.pathLine < 0 {
		debug.V(1).Log("includeIf section at line %d has no path entry", i+1)

		return nil, 0, &MalformedIncludeError{Line: i + 1}
	}

	return sec, j, nil
}

// scanPlain consumes any non-includeIf section verbatim, recording key-value
// entries for lookup without ever reformatting them.
func scanPlain(lines []string, i int, name string) (*section, int) {
	sec := &section{
		kind:  kindPlain,
		line:  i + 1,
		name:  name,
		lines: []string{lines[i]},
	}

	j := i + 1
	for ; j < len(lines); j++ {
		if strings.HasPrefix(strings.TrimSpace(lines[j]), "[") {
			break
		}
		sec.lines = append(sec.lines, lines[j])

		if isBlank(lines[j]) || isComment(lines[j]) {
			continue
		}
		if m := reEntry.FindStringSubmatch(lines[j]); m != nil {
			sec.entries = append(sec.entries, entry{key: m[1], value: cleanValue(m[2])})
		}
	}

	return sec, j
}

// cleanValue trims a raw entry value, drops an unquoted trailing comment and
// strips surrounding quotes.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, `"`) {
		if idx := strings.IndexAny(v, "#;"); idx >= 0 {
			v = strings.TrimSpace(v[:idx])
		}
	}

	return strings.Trim(v, `"`)
}

// Serialize renders the document. Untouched sections are reproduced
// byte-identically; sections written by AddInclude use the canonical
// tab-indented form.
func (d *Document) Serialize() []byte {
	lines := make([]string, 0, 64)
	for _, sec := range d.sections {
		lines = append(lines, sec.lines...)
	}
	if len(lines) == 0 {
		return []byte{}
	}

	out := strings.Join(lines, "\n")
	if d.finalNewline {
		out += "\n"
	}

	return []byte(out)
}

// String renders the document as text. See Serialize.
func (d *Document) String() string {
	return string(d.Serialize())
}

// AddInclude ensures a conditional include mapping triggerDir to
// profilePath exists. The trigger directory is compared against existing
// mappings after trailing-slash normalization; on a match the existing
// section's path entry is rewritten in place and AddInclude reports true.
// Otherwise a new section is appended, separated from prior content by a
// single blank line, and AddInclude reports false.
//
// Plain sections are never modified.
func (d *Document) AddInclude(triggerDir, profilePath string) bool {
	dir := normalizeDir(triggerDir)

	for _, sec := range d.sections {
		if sec.kind != kindIncludeIf {
			continue
		}
		if normalizeDir(sec.dir) != dir {
			continue
		}

		debug.V(1).Log("updating mapping for %q: %q -> %q", sec.dir, sec.profile, profilePath)
		sec.profile = profilePath
		sec.lines[sec.pathLine] = fmt.Sprintf(pathEntryTpl, profilePath)

		return true
	}

	sec := &section{
		kind:     kindIncludeIf,
		dir:      dir,
		profile:  profilePath,
		pathLine: 1,
		lines: []string{
			fmt.Sprintf(includeHeaderTpl, dir),
			fmt.Sprintf(pathEntryTpl, profilePath),
		},
	}

	// keep hand-edited files diff-friendly: one blank line before the new
	// section unless the document already ends with one
	if len(d.sections) > 0 {
		last := d.sections[len(d.sections)-1]
		if n := len(last.lines); n > 0 && !isBlank(last.lines[n-1]) {
			last.lines = append(last.lines, "")
		}
	}

	d.sections = append(d.sections, sec)
	d.finalNewline = true

	debug.V(1).Log("appended mapping %q -> %q", dir, profilePath)

	return false
}

// RemoveMissing drops every includeIf section whose trigger directory no
// longer exists, along with exactly one adjacent blank separator line
// (preferring the one that follows the section). The existence check is
// injected so the operation stays testable without a filesystem; the
// trigger directory is home-expanded and slash-trimmed before the check.
//
// A mapping whose directory exists is never removed, even if its profile
// file is missing.
func (d *Document) RemoveMissing(dirExists func(string) bool) int {
	removed := 0
	keep := make([]*section, 0, len(d.sections))

	for _, sec := range d.sections {
		if sec.kind != kindIncludeIf {
			keep = append(keep, sec)

			continue
		}

		if dirExists(expandHome(strings.TrimSuffix(sec.dir, "/"))) {
			keep = append(keep, sec)

			continue
		}

		removed++
		debug.V(1).Log("removing mapping for %q, directory is gone", sec.dir)

		trailing := 0
		for n := len(sec.lines); trailing < n && isBlank(sec.lines[n-1-trailing]); trailing++ {
		}

		if trailing > 0 {
			// one trailing blank goes with the section, any extras survive
			if extra := trailing - 1; extra > 0 {
				blanks := sec.lines[len(sec.lines)-trailing : len(sec.lines)-1]
				if prev := lastSection(keep); prev != nil {
					prev.lines = append(prev.lines, blanks...)
				} else {
					keep = append(keep, &section{kind: kindPreamble, lines: append([]string(nil), blanks...)})
				}
			}

			continue
		}

		// no trailing blank, take the preceding one instead
		if prev := lastSection(keep); prev != nil {
			if n := len(prev.lines); n > 0 && isBlank(prev.lines[n-1]) {
				prev.lines = prev.lines[:n-1]
			}
		}
	}

	d.sections = keep

	return removed
}

func lastSection(secs []*section) *section {
	if len(secs) == 0 {
		return nil
	}

	return secs[len(secs)-1]
}

// Mappings returns the conditional include mappings in document order.
// It performs no I/O.
func (d *Document) Mappings() []Mapping {
	out := make([]Mapping, 0, len(d.sections))
	for _, sec := range d.sections {
		if sec.kind != kindIncludeIf {
			continue
		}
		out = append(out, Mapping{TriggerDir: sec.dir, ProfilePath: sec.profile, Line: sec.line, Fold: sec.fold})
	}

	return out
}

// Check returns the mappings annotated with existence information. Both
// predicates are injected; paths are home-expanded before the calls.
func (d *Document) Check(dirExists, fileExists func(string) bool) []MappingStatus {
	ms := d.Mappings()
	out := make([]MappingStatus, 0, len(ms))
	for _, m := range ms {
		out = append(out, MappingStatus{
			Mapping:       m,
			DirExists:     dirExists(expandHome(strings.TrimSuffix(m.TriggerDir, "/"))),
			ProfileExists: fileExists(expandHome(m.ProfilePath)),
		})
	}

	return out
}

// TriggerDirs returns the sorted, slash-normalized set of trigger
// directories currently mapped.
func (d *Document) TriggerDirs() []string {
	dirs := make([]string, 0, len(d.sections))
	for _, m := range d.Mappings() {
		dirs = append(dirs, normalizeDir(m.TriggerDir))
	}

	return set.Sorted(dirs)
}

// Get returns the first value for key within the named plain section.
// Section and key names are case-insensitive. Conditional include sections
// are not consulted; use Mappings for those.
func (d *Document) Get(sectionName, key string) (string, bool) {
	sectionName = strings.ToLower(sectionName)
	key = strings.ToLower(key)

	for _, sec := range d.sections {
		if sec.kind != kindPlain || strings.ToLower(sec.name) != sectionName {
			continue
		}
		for _, e := range sec.entries {
			if strings.ToLower(e.key) == key {
				return e.value, true
			}
		}
	}

	return "", false
}
