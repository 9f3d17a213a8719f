package snapshot

import (
	"fmt"
	"regexp"
	"strings"
)

var multiSpace = regexp.MustCompile(`\s+`)

// Characters that cannot appear in filenames on common filesystems.
var unsafeChars = strings.NewReplacer(
	"/", "-", "\\", "-", ":", "-", "*", "", "?", "",
	"\"", "", "<", "", ">", "", "|", "-",
)

// ReportFilename builds the output document filename from the formatted
// case number and the value of the filename-driving field:
//
//	<formatted>_<stem> <name>.<ext>
//
// A blank name falls back to "Unknown". Whitespace is collapsed and
// filesystem-unsafe characters stripped.
func ReportFilename(formattedNumber, stem, name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Unknown"
	}
	stem = strings.TrimSpace(stem)
	if stem == "" {
		stem = "Report"
	}
	filename := fmt.Sprintf("%s_%s %s.%s", formattedNumber, stem, name, strings.TrimPrefix(ext, "."))
	filename = unsafeChars.Replace(filename)
	return strings.TrimSpace(multiSpace.ReplaceAllString(filename, " "))
}
