package pack

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"e6pools/pkg/site"
)

var unsafeRun = regexp.MustCompile(`[<>:"\\/|?*\t]+`)

// SanitizeName turns a gallery name into a directory name. Each run of
// characters that are invalid in file names becomes one underscore, and
// leading and trailing dots are removed. An empty result falls back to the
// gallery ID.
func SanitizeName(name string, id int) string {
	clean := unsafeRun.ReplaceAllString(name, "_")
	clean = strings.Trim(clean, ".")
	if strings.TrimSpace(clean) == "" {
		return strconv.Itoa(id)
	}
	return clean
}

// DirNames assigns each gallery a directory name that no other gallery in
// galleries shares. Names are compared case-insensitively. Galleries keep
// their sanitized name in order of appearance; a later clash gets its ID
// appended as "<name> (<id>)".
func DirNames(galleries []*site.Gallery) map[int]string {
	names := make(map[int]string, len(galleries))
	taken := make(map[string]bool, len(galleries))
	for _, g := range galleries {
		base := SanitizeName(g.Name, g.ID)
		name := base
		for n := 1; taken[strings.ToLower(name)]; n++ {
			if n == 1 {
				name = fmt.Sprintf("%s (%d)", base, g.ID)
			} else {
				name = fmt.Sprintf("%s (%d-%d)", base, g.ID, n)
			}
		}
		taken[strings.ToLower(name)] = true
		names[g.ID] = name
	}
	return names
}
