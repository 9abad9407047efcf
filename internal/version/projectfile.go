package version

import (
	"bytes"
	"errors"
	"regexp"
)

var (
	versionLine = regexp.MustCompile(`^\s*version\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	tableHeader = regexp.MustCompile(`^\s*(?:\[\[([^\[\]]+)\]\]|\[([^\[\]]+)\])\s*(#.*)?$`)
)

const projectTable = "project"

// ErrVersionFieldMissing is returned when the project descriptor has no version key.
var ErrVersionFieldMissing = errors.New(`no version = "..." field found`)

// locateVersion returns the byte span of the quoted version value. Basic and
// literal strings are both accepted.
//
// The value under the [project] table wins. Descriptors without a [project]
// table fall back to the first version key in the file.
func locateVersion(content []byte) (start, end int, err error) {
	fallbackStart, fallbackEnd := -1, -1
	sawProjectTable := false
	table := ""

	offset := 0
	for offset <= len(content) {
		lineEnd := bytes.IndexByte(content[offset:], '\n')
		if lineEnd < 0 {
			lineEnd = len(content) - offset
		}
		line := content[offset : offset+lineEnd]

		if m := tableHeader.FindSubmatch(line); m != nil {
			if m[1] != nil {
				// keys under an array of tables never belong to [project]
				table = "[[" + string(bytes.TrimSpace(m[1])) + "]]"
			} else {
				table = string(bytes.TrimSpace(m[2]))
			}
			if table == projectTable {
				sawProjectTable = true
			}
		} else if loc := versionLine.FindSubmatchIndex(line); loc != nil {
			group := 2
			if loc[group] < 0 {
				group = 4
			}
			valueStart, valueEnd := offset+loc[group], offset+loc[group+1]
			if table == projectTable {
				return valueStart, valueEnd, nil
			}
			if fallbackStart < 0 {
				fallbackStart, fallbackEnd = valueStart, valueEnd
			}
		}

		offset += lineEnd + 1
	}

	if !sawProjectTable && fallbackStart >= 0 {
		return fallbackStart, fallbackEnd, nil
	}
	return 0, 0, ErrVersionFieldMissing
}

// ReadVersion extracts the canonical version from a project descriptor.
func ReadVersion(content []byte) (Version, error) {
	start, end, err := locateVersion(content)
	if err != nil {
		return Version{}, err
	}
	return Parse(string(content[start:end]))
}

// ReplaceVersion rewrites the canonical version value; every other byte is preserved.
func ReplaceVersion(content []byte, v Version) ([]byte, error) {
	start, end, err := locateVersion(content)
	if err != nil {
		return nil, err
	}
	replacement := v.String()
	out := make([]byte, 0, len(content)-(end-start)+len(replacement))
	out = append(out, content[:start]...)
	out = append(out, replacement...)
	out = append(out, content[end:]...)
	return out, nil
}
