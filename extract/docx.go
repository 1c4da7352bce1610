package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docx XML structures, narrowed to the paragraph/run/text elements the
// text extraction needs.
type docxDocument struct {
	Body docxBody `xml:"body"`
}

type docxBody struct {
	Paragraphs []docxParagraph `xml:"p"`
}

type docxParagraph struct {
	Properties *docxParaProps `xml:"pPr"`
	Runs       []docxRun      `xml:"r"`
}

type docxParaProps struct {
	Style *docxStyle `xml:"pStyle"`
}

type docxStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Texts []string `xml:"t"`
}

// parseDOCX extracts paragraph text from word/document.xml inside the
// DOCX zip container. Heading-styled paragraphs become markdown headings
// so structure survives into the markdown rendering.
func parseDOCX(path string) (string, string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", "", fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", "", fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", "", fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", "", err
	}

	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", "", fmt.Errorf("parsing DOCX XML: %w", err)
	}

	var text strings.Builder
	var markdown strings.Builder
	for _, para := range doc.Body.Paragraphs {
		var line strings.Builder
		for _, run := range para.Runs {
			for _, t := range run.Texts {
				line.WriteString(t)
			}
		}
		content := strings.TrimSpace(line.String())
		if content == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
			markdown.WriteString("\n\n")
		}
		text.WriteString(content)

		if level := headingLevel(para.Properties); level > 0 {
			markdown.WriteString(strings.Repeat("#", level) + " " + content)
		} else {
			markdown.WriteString(content)
		}
	}

	if text.Len() == 0 {
		return "", "", fmt.Errorf("no extractable text in DOCX")
	}
	return text.String(), markdown.String(), nil
}

// headingLevel maps a Heading1..Heading6 paragraph style to its level,
// or 0 for body text.
func headingLevel(props *docxParaProps) int {
	if props == nil || props.Style == nil {
		return 0
	}
	style := strings.ToLower(props.Style.Val)
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}
