package extract

import (
	"fmt"
	"os"
	"strings"
)

// parsePlainText reads a .txt file verbatim.
func parsePlainText(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading text file: %w", err)
	}
	return string(data), "", nil
}

// parseMarkdownFile reads a .md file; the raw text strips heading and
// emphasis markers so validation and embedding see prose, while the
// original markdown is preserved as the formatted rendering.
func parseMarkdownFile(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading markdown file: %w", err)
	}
	markdown := string(data)
	return stripMarkdown(markdown), markdown, nil
}

func stripMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, "#")
		if trimmed != line {
			trimmed = strings.TrimSpace(trimmed)
		}
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		trimmed = strings.ReplaceAll(trimmed, "__", "")
		lines[i] = trimmed
	}
	return strings.Join(lines, "\n")
}
