package formatter

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date stamp used in script file names.
const DateLayout = "20060102"

var (
	reTagInvalid  = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	reUnderscores = regexp.MustCompile(`_+`)
	reFileCounter = regexp.MustCompile(`_([0-9]+)\.[^.]+$`)
)

// NameOptions controls the script file names.
type NameOptions struct {
	Tag    string
	NoDate bool
	Now    time.Time
}

// ScriptNames returns the patch and revert file names for database:
// <db>[_<tag>][.<YYYYMMDD>].(patch|revert).sql.
func ScriptNames(database string, opts NameOptions) (patch, revert string) {
	base := database
	if tag := SanitizeTag(opts.Tag); tag != "" {
		base += "_" + tag
	}
	if !opts.NoDate {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		base += "." + now.Format(DateLayout)
	}
	return base + ".patch.sql", base + ".revert.sql"
}

// SanitizeTag replaces characters outside [A-Za-z0-9_-] with underscores and
// squeezes repeated underscores.
func SanitizeTag(tag string) string {
	tag = reTagInvalid.ReplaceAllString(tag, "_")
	return reUnderscores.ReplaceAllString(tag, "_")
}

// Versioned returns path unchanged when nothing like it exists yet.
// Otherwise it appends the next free counter before the extension:
// file.sql, file_1.sql, file_2.sql, ...
func Versioned(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)

	matches, err := filepath.Glob(globEscape(stem) + "*" + globEscape(ext))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return path, nil
	}

	next := 1
	for _, m := range matches {
		sub := reFileCounter.FindStringSubmatch(m)
		if sub == nil {
			continue
		}
		if n, err := strconv.Atoi(sub[1]); err == nil && n+1 > next {
			next = n + 1
		}
	}
	return stem + "_" + strconv.Itoa(next) + ext, nil
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
