package filemeta

import "strings"

// CleanPath collapses repeated slashes, drops a trailing slash and makes the
// path absolute.
func CleanPath(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// SplitPath returns the non-empty segments of p in order. "/root/a//b/"
// yields ["root", "a", "b"].
func SplitPath(p string) []string {
	raw := strings.Split(p, "/")
	parts := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// JoinPath appends name to parent.
func JoinPath(parent, name string) string {
	if parent == "" || parent == "/" {
		return CleanPath("/" + name)
	}
	return CleanPath(parent + "/" + name)
}

// Base returns the last segment of p, or "/" for the store root.
func Base(p string) string {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return "/"
	}
	return parts[len(parts)-1]
}

// Dir returns everything but the last segment of p.
func Dir(p string) string {
	parts := SplitPath(p)
	if len(parts) <= 1 {
		return "/"
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/")
}
