package configlink

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripByteIdentity(t *testing.T) {
	t.Parallel()

	for name, in := range map[string]string{
		"empty": "",
		"simple": `[user]
	name = Default
	email = default@example.com
`,
		"comments and blanks": `# global git configuration
; managed by hand

[user]
	name = X # inline comment

[alias]
	co = checkout
	st = status
`,
		"includeIf with interior comment": `[includeIf "gitdir:~/work/"]
	# work identity
	path = ~/.config/git/profiles/work
`,
		"mixed sections": `[user]
    name = Spaces Indent

[includeIf "gitdir:~/repositories/work/"]
    path = ~/.config/git/profiles/work

[core]
	editor = vim
`,
		"onbranch include stays opaque": `[includeIf "onbranch:main"]
	path = ~/.config/git/main-only
`,
		"case folded include": `[includeIf "gitdir/i:/srv/Work/"]
	path = ~/.config/git/profiles/work
`,
		"no trailing newline": "[user]\n\tname = x",
		"only comments":       "# nothing to see here\n",
		"leading preamble": `# preamble comment

[user]
	name = y
`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc, err := ParseBytes([]byte(in))
			require.NoError(t, err)
			assert.Equal(t, in, string(doc.Serialize()))
		})
	}
}

func TestRoundTripIdempotence(t *testing.T) {
	t.Parallel()

	in := `# preamble
[user]
	name = Default

[includeIf "gitdir:~/work/"]
	path = ~/.config/git/profiles/work
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)
	once := doc.Serialize()

	doc2, err := ParseBytes(once)
	require.NoError(t, err)
	assert.Equal(t, string(once), string(doc2.Serialize()))
}

func TestMappings(t *testing.T) {
	t.Parallel()

	in := `[user]
	name = Default

[includeIf "gitdir:~/work/"]
	path = ~/.config/git/profiles/work

[includeIf "gitdir:/srv/clients/acme/"]
	path = "/home/u/.config/git/profiles/acme"
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	ms := doc.Mappings()
	require.Len(t, ms, 2)

	assert.Equal(t, "~/work/", ms[0].TriggerDir)
	assert.Equal(t, "~/.config/git/profiles/work", ms[0].ProfilePath)
	assert.Equal(t, 4, ms[0].Line)

	assert.Equal(t, "/srv/clients/acme/", ms[1].TriggerDir)
	assert.Equal(t, "/home/u/.config/git/profiles/acme", ms[1].ProfilePath, "surrounding quotes are stripped")
	assert.Equal(t, 7, ms[1].Line)
}

func TestMalformedInclude(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		in   string
		line int
	}{
		"next section follows immediately": {
			in:   "[includeIf \"gitdir:~/x/\"]\n[user]\n\tname = x\n",
			line: 1,
		},
		"header at end of file": {
			in:   "[user]\n\tname = x\n[includeIf \"gitdir:~/y/\"]\n",
			line: 3,
		},
		"only comments in body": {
			in:   "[includeIf \"gitdir:~/z/\"]\n\t# no path here\n",
			line: 1,
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			doc, err := ParseBytes([]byte(tc.in))
			require.Error(t, err)
			assert.Nil(t, doc, "no partial document on parse failure")
			assert.ErrorIs(t, err, ErrMalformedInclude)

			var merr *MalformedIncludeError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tc.line, merr.Line)
		})
	}
}

func TestAddIncludeAppend(t *testing.T) {
	t.Parallel()

	in := `[user]
    name = Default
    email = default@example.com
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	updated := doc.AddInclude("~/repositories/work/", "~/.config/git/profiles/work")
	assert.False(t, updated)
	// appended entries are tab-indented the way git writes them, independent
	// of the indentation style of existing sections
	assert.Equal(t, in+`
[includeIf "gitdir:~/repositories/work/"]
	path = ~/.config/git/profiles/work
`, string(doc.Serialize()))

	// same trigger again: the path entry changes in place, nothing is duplicated
	updated = doc.AddInclude("~/repositories/work/", "~/.config/git/profiles/work-updated")
	assert.True(t, updated)

	out := string(doc.Serialize())
	assert.Equal(t, in+`
[includeIf "gitdir:~/repositories/work/"]
	path = ~/.config/git/profiles/work-updated
`, out)
	assert.Equal(t, 1, strings.Count(out, "[includeIf"))
	assert.True(t, strings.HasPrefix(out, in), "the [user] section is untouched")
}

func TestAddIncludeEmptyDocument(t *testing.T) {
	t.Parallel()

	doc, err := ParseBytes(nil)
	require.NoError(t, err)

	updated := doc.AddInclude("~/w/", "~/.config/git/profiles/w")
	assert.False(t, updated)
	assert.Equal(t, `[includeIf "gitdir:~/w/"]
	path = ~/.config/git/profiles/w
`, string(doc.Serialize()))
}

func TestAddIncludeNoDoubleBlank(t *testing.T) {
	t.Parallel()

	in := "[user]\n\tname = x\n\n"

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	doc.AddInclude("/srv/work/", "p")
	assert.Equal(t, "[user]\n\tname = x\n\n[includeIf \"gitdir:/srv/work/\"]\n\tpath = p\n", string(doc.Serialize()))
}

func TestAddIncludeSlashNormalization(t *testing.T) {
	t.Parallel()

	doc, err := ParseBytes([]byte("[includeIf \"gitdir:~/work/\"]\n\tpath = old\n"))
	require.NoError(t, err)

	// no trailing slash and doubled trailing slashes both hit the same mapping
	assert.True(t, doc.AddInclude("~/work", "new"))
	assert.True(t, doc.AddInclude("~/work//", "newer"))

	out := string(doc.Serialize())
	assert.Equal(t, 1, strings.Count(out, "[includeIf"))
	assert.Contains(t, out, "\tpath = newer\n")

	// appended sections get exactly one trailing slash in the condition
	assert.False(t, doc.AddInclude("/srv/clients/acme", "pa"))
	assert.Contains(t, doc.String(), "[includeIf \"gitdir:/srv/clients/acme/\"]")
}

func TestAddIncludeKeepsCaseFoldedHeader(t *testing.T) {
	t.Parallel()

	doc, err := ParseBytes([]byte("[includeIf \"gitdir/i:/srv/Work/\"]\n\tpath = old\n"))
	require.NoError(t, err)

	// the update rewrites only the path entry, the /i: header stays as written
	assert.True(t, doc.AddInclude("/srv/Work/", "new"))
	assert.Equal(t, "[includeIf \"gitdir/i:/srv/Work/\"]\n\tpath = new\n", doc.String())
}

func TestAddIncludeLeavesOthersIntact(t *testing.T) {
	t.Parallel()

	in := `[alias]
	co = checkout

[includeIf "gitdir:/srv/a/"]
	path = pa

[core]
	editor = vim
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	doc.AddInclude("/srv/b/", "pb")
	assert.Equal(t, in+`
[includeIf "gitdir:/srv/b/"]
	path = pb
`, string(doc.Serialize()))
}

func TestRemoveMissing(t *testing.T) {
	t.Parallel()

	in := `[includeIf "gitdir:/a/"]
	path = pa

[includeIf "gitdir:/b/"]
	path = pb

[includeIf "gitdir:/c/"]
	path = pc
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	removed := doc.RemoveMissing(func(dir string) bool {
		return dir != "/b"
	})
	assert.Equal(t, 1, removed)
	assert.Len(t, doc.Mappings(), 2)
	assert.Equal(t, `[includeIf "gitdir:/a/"]
	path = pa

[includeIf "gitdir:/c/"]
	path = pc
`, string(doc.Serialize()))
}

func TestRemoveMissingTakesPrecedingBlank(t *testing.T) {
	t.Parallel()

	in := `[user]
	name = x

[includeIf "gitdir:/gone/"]
	path = p
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	removed := doc.RemoveMissing(func(string) bool { return false })
	assert.Equal(t, 1, removed)
	assert.Equal(t, "[user]\n\tname = x\n", string(doc.Serialize()))
}

func TestRemoveMissingKeepsExtraBlanks(t *testing.T) {
	t.Parallel()

	in := "[includeIf \"gitdir:/gone/\"]\n\tpath = p\n\n\n[user]\n\tname = x\n"

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	removed := doc.RemoveMissing(func(string) bool { return false })
	assert.Equal(t, 1, removed)
	// exactly one separator blank goes with the section, the second survives
	assert.Equal(t, "\n[user]\n\tname = x\n", string(doc.Serialize()))
}

func TestRemoveMissingSparesExistingDirs(t *testing.T) {
	t.Parallel()

	in := `[includeIf "gitdir:/srv/work/"]
	path = /nonexistent/profile
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	// the profile file being gone is not a removal trigger
	removed := doc.RemoveMissing(func(string) bool { return true })
	assert.Equal(t, 0, removed)
	assert.Equal(t, in, string(doc.Serialize()))
}

func TestCheck(t *testing.T) {
	t.Parallel()

	in := `[includeIf "gitdir:/srv/a/"]
	path = /etc/prof-a

[includeIf "gitdir:/srv/b/"]
	path = /etc/prof-b
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	st := doc.Check(
		func(dir string) bool { return dir == "/srv/a" },
		func(file string) bool { return file == "/etc/prof-b" },
	)
	require.Len(t, st, 2)

	assert.True(t, st[0].DirExists)
	assert.False(t, st[0].ProfileExists)
	assert.False(t, st[1].DirExists)
	assert.True(t, st[1].ProfileExists)
}

func TestTriggerDirs(t *testing.T) {
	t.Parallel()

	in := `[includeIf "gitdir:/srv/z/"]
	path = pz

[includeIf "gitdir:/srv/a"]
	path = pa
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/a/", "/srv/z/"}, doc.TriggerDirs())
}

func TestGet(t *testing.T) {
	t.Parallel()

	in := `[User]
	Name = Default
	email = "quoted@example.com"
	editor = vim # trailing comment
`

	doc, err := ParseBytes([]byte(in))
	require.NoError(t, err)

	v, ok := doc.Get("user", "name")
	assert.True(t, ok)
	assert.Equal(t, "Default", v)

	v, ok = doc.Get("user", "EMAIL")
	assert.True(t, ok)
	assert.Equal(t, "quoted@example.com", v)

	v, ok = doc.Get("user", "editor")
	assert.True(t, ok)
	assert.Equal(t, "vim", v)

	_, ok = doc.Get("core", "editor")
	assert.False(t, ok)
}

func TestParseReader(t *testing.T) {
	t.Parallel()

	doc, err := Parse(strings.NewReader("[user]\n\tname = x\n"))
	require.NoError(t, err)
	require.Len(t, doc.Mappings(), 0)

	_, err = Parse(strings.NewReader("[includeIf \"gitdir:~/x/\"]\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedInclude))
}
