package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// RemoteConfig configures the external conversion/OCR service used for
// image formats and legacy office documents the native parsers cannot
// read.
type RemoteConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// RemoteBackend sends documents to a hosted conversion service that
// returns markdown. Like the converter backend it produces no entities.
type RemoteBackend struct {
	cfg    RemoteConfig
	client *http.Client
}

// NewRemoteBackend creates a client for the remote conversion service.
func NewRemoteBackend(cfg RemoteConfig) *RemoteBackend {
	return &RemoteBackend{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (b *RemoteBackend) Name() string { return "remote-converter" }

func (b *RemoteBackend) SupportedFormats() []string {
	return []string{"png", "jpg", "jpeg", "tiff", "webp", "doc", "xls", "ppt", "pdf"}
}

// Extract uploads the file, polls until conversion finishes, and wraps
// the returned markdown.
func (b *RemoteBackend) Extract(ctx context.Context, path string, opts Options) (*Result, error) {
	if b.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: remote converter API key missing", ErrNotConfigured)
	}
	if !supportsFormat(b, formatOf(path)) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, formatOf(path))
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	jobID, err := b.upload(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("uploading to converter: %w", err)
	}

	markdown, err := b.poll(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetching converter result: %w", err)
	}

	return &Result{
		RawText:    stripMarkdown(markdown),
		Markdown:   markdown,
		Backend:    b.Name(),
		Confidence: ConfidenceMedium,
		Metadata: map[string]string{
			"format":             formatOf(path),
			"entities_supported": "false",
			"conversion_job":     jobID,
		},
	}, nil
}

// ExtractText is unsupported: the remote service only accepts files.
func (b *RemoteBackend) ExtractText(ctx context.Context, text string, opts Options) (*Result, error) {
	return nil, fmt.Errorf("%w: remote converter does not accept raw text", ErrUnsupportedFormat)
}

func (b *RemoteBackend) upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload returned %d: %s", resp.StatusCode, data)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (b *RemoteBackend) poll(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	deadline := time.Now().Add(5 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("conversion job %s timed out", jobID)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/job/%s/result/markdown", b.cfg.BaseURL, jobID), nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)

		resp, err := b.client.Do(req)
		if err != nil {
			return "", err
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var out struct {
				Markdown string `json:"markdown"`
			}
			err := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if err != nil {
				return "", err
			}
			return out.Markdown, nil
		case http.StatusAccepted, http.StatusNotFound:
			// Still processing.
			resp.Body.Close()
		default:
			data, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return "", fmt.Errorf("poll returned %d: %s", resp.StatusCode, data)
		}
	}
}
