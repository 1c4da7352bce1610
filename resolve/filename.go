package resolve

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FilenameParts are the fields of the upload naming convention
// {Company}_{PropertyShorthand}_{Description}_{YYYY-MM-DD}.<ext>.
// The trailing date is optional. Company and Property feed the resolver
// before any extraction runs, so conventionally named files link to
// their entities even when extraction later fails.
type FilenameParts struct {
	Company     string
	Property    string
	Description string
	Date        string
}

var reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseFilename splits filename per the naming convention. It reports
// false when the name has fewer than three underscore-delimited fields,
// which means the convention does not apply.
func ParseFilename(filename string) (FilenameParts, bool) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	fields := strings.Split(base, "_")
	if len(fields) < 3 {
		return FilenameParts{}, false
	}

	parts := FilenameParts{
		Company:  strings.TrimSpace(fields[0]),
		Property: strings.TrimSpace(fields[1]),
	}
	rest := fields[2:]
	if last := rest[len(rest)-1]; reISODate.MatchString(last) {
		parts.Date = last
		rest = rest[:len(rest)-1]
	}
	parts.Description = strings.TrimSpace(strings.Join(rest, "_"))
	return parts, true
}
