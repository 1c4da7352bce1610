package extract

import (
	"regexp"
	"strings"
)

// entityExtractionPrompt asks the model to extract entities from business
// and property documents. The task is kept atomic (entities only) so
// smaller models stay reliable; relationships are a second call with the
// entity set fixed.
const entityExtractionPrompt = `You are an entity extraction engine for business and property documents (leases, invoices, correspondence, reports).
Given the following document text, extract all entities of the requested types.

ENTITY TYPES (use exactly these values):
%s

Return a JSON object with exactly one key:
  "entities" : array of {"name": string, "type": string, "value": string, "source_text": string}

Rules:
- "name" is the entity as written in the document.
- "value" is an associated datum if one exists (a dollar amount, a dosage, a date), otherwise "".
- "source_text" is the verbatim sentence or fragment the entity appears in.
- Only include entities clearly supported by the text. Never invent entities.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

EXAMPLES:

Input: "Acme Corporation leases Suite 400 at 123 Main Street to Jane Smith for $4,500/month starting 2024-03-01."
Output:
{"entities": [{"name": "Acme Corporation", "type": "company", "value": "", "source_text": "Acme Corporation leases Suite 400"}, {"name": "123 Main Street", "type": "property", "value": "Suite 400", "source_text": "Suite 400 at 123 Main Street"}, {"name": "Jane Smith", "type": "person", "value": "", "source_text": "to Jane Smith for $4,500/month"}, {"name": "$4,500/month", "type": "amount", "value": "4500", "source_text": "for $4,500/month starting 2024-03-01"}]}

Input: "Patient was prescribed Metformin 500mg twice daily by Dr. Patel."
Output:
{"entities": [{"name": "Metformin", "type": "medication", "value": "500mg twice daily", "source_text": "prescribed Metformin 500mg twice daily"}, {"name": "Dr. Patel", "type": "person", "value": "", "source_text": "by Dr. Patel"}]}

%s
TEXT:
%s`

// relationshipExtractionPrompt asks the model for relationships between
// entities already extracted. Source and target must come from the known
// entity list, which keeps the output joinable.
const relationshipExtractionPrompt = `You are a relationship extraction engine for business and property documents.
Given the text and a list of known entities, extract relationships between them.

KNOWN ENTITIES:
%s

RELATION TYPES (use exactly these values):
- leases       : source leases or rents target
- owns         : source owns target
- employs      : source employs target
- manages      : source manages or administers target
- located_at   : source is located at target
- party_to     : source is a party to target (a contract or document)
- mentions     : source refers to target without a stronger relation

Return a JSON object with exactly one key:
  "relationships" : array of {"source": string, "target": string, "relation_type": string, "properties": object}

Rules:
- Source and target must be entity names from the KNOWN ENTITIES list above.
- "properties" holds string key/value details (dates, amounts) or {}.
- Only include relationships clearly supported by the text.
- If there are none, return an empty array.
- Do NOT include any text outside the JSON object.

TEXT:
%s`

// Regex patterns for pre-extracting structured values from text. The
// matches are fed to the entity prompt as hints so the model does not
// overlook data that is easy to find mechanically.
var (
	reISODate  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	reMoney    = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d{2})?(?:/\w+)?`)
	reEmail    = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.]+\b`)
	rePhone    = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)
	reStreetNo = regexp.MustCompile(`\b\d{1,5}\s+[A-Z][a-zA-Z]+\s+(?:St|Street|Ave|Avenue|Blvd|Boulevard|Rd|Road|Dr|Drive|Ln|Lane|Way|Ct|Court|Pl|Place)\b\.?`)
)

// preExtractHints finds structured values (dates, amounts, addresses,
// contact details) mechanically so they can be offered to the model as
// extraction hints.
func preExtractHints(text string) []string {
	seen := make(map[string]bool)
	var hints []string

	add := func(matches []string) {
		for _, m := range matches {
			m = strings.TrimSpace(m)
			key := strings.ToLower(m)
			if m == "" || seen[key] {
				continue
			}
			seen[key] = true
			hints = append(hints, m)
		}
	}

	add(reStreetNo.FindAllString(text, -1))
	add(reMoney.FindAllString(text, -1))
	add(reISODate.FindAllString(text, -1))
	add(reEmail.FindAllString(text, -1))
	add(rePhone.FindAllString(text, -1))

	const maxHints = 40
	if len(hints) > maxHints {
		hints = hints[:maxHints]
	}
	return hints
}

// hintBlock renders pre-extracted hints for inclusion in a prompt.
func hintBlock(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return "HINTS (values found in the text, include the relevant ones):\n" +
		strings.Join(hints, ", ") + "\n"
}
