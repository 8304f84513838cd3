package settings

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Diff returns a line diff between the YAML forms of two settings files, or
// an empty string when they serialize identically.
func Diff(previous, current File) string {
	prev, err := previous.Marshal()
	if err != nil {
		return ""
	}
	curr, err := current.Marshal()
	if err != nil {
		return ""
	}
	return cmp.Diff(splitLines(prev), splitLines(curr))
}

func splitLines(data []byte) []string {
	text := strings.TrimSuffix(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
