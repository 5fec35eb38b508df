// Package configlink manages the `[includeIf "gitdir:..."]` sections of a
// Git config file, the mechanism behind per-directory identity profiles
// (one Git identity for ~/work, another for ~/personal, and so on).
//
// It deliberately does not try to be a full gitconfig implementation. It
// recognizes conditional include sections with a gitdir condition and treats
// everything else - [user], [core], [alias], comments, blank lines, other
// includeIf variants - as opaque text that is reproduced byte-identically on
// write. Serializing an unmodified document always returns the input bytes.
//
// # Usage
//
// The usual entry point is the Linker, which wraps a config file on disk:
//
//	l := configlink.New(filepath.Join(home, ".gitconfig"))
//	updated, err := l.AddInclude("~/repositories/work/", "~/.config/git/profiles/work")
//	if err != nil { ... }
//
// AddInclude is idempotent per trigger directory: a second call with the
// same directory updates the existing path entry in place instead of
// appending a duplicate section.
//
// For unit tests and callers that manage I/O themselves the document layer
// is available directly:
//
//	doc, err := configlink.Parse(r)
//	doc.AddInclude("~/work/", "~/.config/git/profiles/work")
//	out := doc.Serialize()
//
// # Writes
//
// Every flush that changes existing content first copies the previous bytes
// to a timestamped sibling backup (never deleted by this package), then
// writes a temp file in the same directory and renames it over the
// original. An interrupted or failed write leaves the original file as it
// was. BackupPath reports the last backup written so callers can surface it.
//
// # Profiles
//
// The Store type materializes identity fragments (user name, email, signing
// key, SSH command) that the conditional includes point at. configlink never
// parses those fragments back; it only checks their existence for reporting.
//
// # Known limitations
//
//   - Concurrent invocations against the same file are last-writer-wins.
//     No locking is performed; the intended caller is a short-lived,
//     single-user setup tool.
//   - Only gitdir conditions are managed (including globs and the
//     case-insensitive gitdir/i: form). Other includeIf conditions such as
//     onbranch are preserved but not rewritten.
package configlink
