package gitrepo

import "regexp"

// versionTagPattern matches the Debian-style version tags the clone/build
// pipeline accepts: an optional leading "v", digits, dots and an optional
// "-N" revision suffix. Tags like "nightly" fail this and are skipped by
// LatestTag.
var versionTagPattern = regexp.MustCompile(`^v?\d+(\.\d+)*(-\d+)?$`)

// IsValidVersionTag is the default version-format validator passed to the
// Git collaborator's latest-tag selection.
func IsValidVersionTag(tag string) bool {
	return versionTagPattern.MatchString(tag)
}
