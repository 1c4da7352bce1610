package extract

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
)

// parseEML extracts headers and the text body from an RFC 5322 email
// message. Multipart messages prefer the text/plain part; HTML-only
// messages fall back to a crude tag strip.
func parseEML(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("opening email: %w", err)
	}
	defer f.Close()

	msg, err := mail.ReadMessage(f)
	if err != nil {
		return "", "", fmt.Errorf("parsing email: %w", err)
	}

	body, err := emailBody(msg)
	if err != nil {
		return "", "", err
	}

	var out strings.Builder
	for _, h := range []string{"From", "To", "Subject", "Date"} {
		if v := msg.Header.Get(h); v != "" {
			out.WriteString(h + ": " + v + "\n")
		}
	}
	out.WriteString("\n")
	out.WriteString(strings.TrimSpace(body))

	text := out.String()
	if strings.TrimSpace(body) == "" {
		return "", "", fmt.Errorf("no extractable body in email")
	}
	return text, "", nil
}

func emailBody(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		data, err := decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
		return data, err
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Malformed header; read the body as-is.
		data, rerr := io.ReadAll(msg.Body)
		return string(data), rerr
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return multipartBody(msg.Body, params["boundary"])
	}

	data, err := decodeTransfer(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return "", err
	}
	if mediaType == "text/html" {
		return stripHTMLTags(data), nil
	}
	return data, nil
}

// multipartBody walks the parts and returns the first text/plain part,
// falling back to stripped text/html.
func multipartBody(r io.Reader, boundary string) (string, error) {
	if boundary == "" {
		data, err := io.ReadAll(r)
		return string(data), err
	}

	mr := multipart.NewReader(r, boundary)
	var htmlFallback string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading email part: %w", err)
		}

		mediaType, params, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		switch {
		case strings.HasPrefix(mediaType, "multipart/"):
			nested, err := multipartBody(part, params["boundary"])
			if err == nil && nested != "" {
				return nested, nil
			}
		case mediaType == "text/plain" || mediaType == "":
			return decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding"))
		case mediaType == "text/html" && htmlFallback == "":
			data, err := decodeTransfer(part, part.Header.Get("Content-Transfer-Encoding"))
			if err == nil {
				htmlFallback = stripHTMLTags(data)
			}
		}
	}

	if htmlFallback != "" {
		return htmlFallback, nil
	}
	return "", fmt.Errorf("no text part found in multipart email")
}

func decodeTransfer(r io.Reader, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding email body: %w", err)
	}
	return string(data), nil
}

// stripHTMLTags removes tags and collapses whitespace. Good enough for
// extraction; layout fidelity is not a goal for email bodies.
func stripHTMLTags(s string) string {
	var out strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			out.WriteByte(' ')
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(out.String()), " ")
}
