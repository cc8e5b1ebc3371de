// Package version reports the kubechat server version.
//
// Commit is set with -ldflags "-X github.com/bhandras/kubechat/internal/version.Commit=<hash>".
package version

import (
	"fmt"
	"strings"
)

// Commit is the git commit the binary was built from.
var Commit string

// preReleaseAlphabet lists the characters semver allows in a pre-release tag.
const preReleaseAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-."

const (
	major uint = 0
	minor uint = 1
	patch uint = 0

	preRelease = "dev"
)

// Version returns the semantic version of the server.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if tag := sanitize(preRelease); tag != "" {
		v += "-" + tag
	}
	return v
}

// String returns the version followed by the commit, when known.
func String() string {
	commit := strings.TrimSpace(Commit)
	if commit == "" {
		return Version()
	}
	return fmt.Sprintf("%s (commit %s)", Version(), sanitize(commit))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(preReleaseAlphabet, r) {
			return r
		}
		return -1
	}, s)
}
