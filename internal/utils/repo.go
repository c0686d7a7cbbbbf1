package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepository splits a repository reference into owner and name.
// Accepted forms are "owner/name", "github.com/owner/name" and full
// https URLs, optionally ending in ".git" or carrying extra path segments.
func ParseRepository(ref string) (owner, name string, err error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", fmt.Errorf("empty repository reference")
	}

	path := ref
	if strings.Contains(ref, "://") {
		u, err := url.Parse(ref)
		if err != nil {
			return "", "", fmt.Errorf("invalid repository URL %q: %w", ref, err)
		}
		path = u.Path
	} else if i := strings.Index(ref, "/"); i > 0 && strings.Contains(ref[:i], ".") {
		path = ref[i:]
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository reference %q", ref)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// FullName joins owner and name as "owner/name"
func FullName(owner, name string) string {
	return owner + "/" + name
}
