package llm

import "strings"

// CleanJSON prepares a model response for json.Unmarshal: it strips
// markdown code fences, trims prose before the first brace and after the
// last one, and repairs unquoted object keys, which smaller models emit
// under JSON mode.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// Models sometimes wrap the object in explanation text.
	if start := strings.IndexAny(s, "{["); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndexAny(s, "}]"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	return repairJSON(s)
}

// repairJSON fixes keys missing their opening quote, e.g. `, type":`
// becomes `, "type":`.
func repairJSON(s string) string {
	result := []rune(s)
	fixed := make([]rune, 0, len(result)+16)

	i := 0
	for i < len(result) {
		ch := result[i]
		if ch != '{' && ch != ',' {
			fixed = append(fixed, ch)
			i++
			continue
		}

		fixed = append(fixed, ch)
		i++

		for i < len(result) && (result[i] == ' ' || result[i] == '\n' || result[i] == '\t') {
			fixed = append(fixed, result[i])
			i++
		}

		if i >= len(result) || result[i] == '"' || !isKeyRune(result[i]) {
			continue
		}

		keyStart := i
		for i < len(result) && (isKeyRune(result[i]) || result[i] == '_') {
			i++
		}

		// A bare key followed by ": lost its opening quote.
		if i+1 < len(result) && result[i] == '"' && result[i+1] == ':' {
			fixed = append(fixed, '"')
			fixed = append(fixed, result[keyStart:i]...)
			continue
		}
		fixed = append(fixed, result[keyStart:i]...)
	}

	return string(fixed)
}

func isKeyRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
