package updater

import (
	"regexp"
	"strconv"
	"strings"
)

// SemVer is a parsed release version.
type SemVer struct {
	Major      int
	Minor      int
	Patch      int
	PreRelease string
}

var (
	semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z.-]+))?$`)
	shaRegex    = regexp.MustCompile(`^[a-f0-9]{40}$`)
)

// ParseSemVer parses "1.2.3", "v1.2.3" or "1.2.3-beta.1". Development
// builds ("dev", commit hashes) are not versions and give nil.
func ParseSemVer(s string) *SemVer {
	s = strings.TrimSpace(s)
	if s == "" || s == "dev" || shaRegex.MatchString(s) {
		return nil
	}
	m := semverRegex.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return &SemVer{Major: major, Minor: minor, Patch: patch, PreRelease: m[4]}
}

func (v *SemVer) IsPreRelease() bool { return v.PreRelease != "" }

// IsNewer reports whether latest should replace current. Pre-releases are
// never offered; a pre-release current is upgraded to its final release.
func IsNewer(current, latest string) bool {
	cur, lat := ParseSemVer(current), ParseSemVer(latest)
	if cur == nil || lat == nil || lat.IsPreRelease() {
		return false
	}
	if cur.Major != lat.Major {
		return cur.Major < lat.Major
	}
	if cur.Minor != lat.Minor {
		return cur.Minor < lat.Minor
	}
	if cur.Patch != lat.Patch {
		return cur.Patch < lat.Patch
	}
	return cur.IsPreRelease()
}
