package service

import "strings"

// CleanTitle collapses runs of whitespace into single spaces and trims
// the result. Legacy clients submitted titles with stray newlines and
// double spaces; stored titles are normalised once on write.
func CleanTitle(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// FormatAbstract normalises line endings to \n, trims trailing spaces
// from each line and drops leading/trailing blank lines. Paragraph
// breaks inside the abstract are preserved.
func FormatAbstract(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}
