// Package extraction reads marriage-certificate fields out of scanned
// documents with the Gemini vision API.
package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"akta-archive/metrics"
)

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("ai extraction is not configured")
	// ErrEmptyResponse is returned when the model answers without content,
	// which usually means a safety filter blocked the request.
	ErrEmptyResponse = errors.New("ai returned an empty response")
)

const prompt = `Analisa foto dokumen Akta Nikah/Buku Nikah dari Indonesia ini.
Ekstrak informasi berikut dengan akurat:
1. Nama Lengkap Suami
2. Nama Lengkap Istri
3. Tanggal Pernikahan (konversi ke format YYYY-MM-DD, contoh: 03 Januari 2025 menjadi 2025-01-03)
4. Nomor NB (Nomor Berkas/Perforasi di pojok)
5. Nomor Akta Nikah (Nomor pendaftaran resmi)
6. Transkrip lengkap teks yang ada di dokumen.

PENTING: Jika ada informasi yang tidak terbaca, kosongkan saja stringnya (null/empty).`

const maxErrorBody = 4 << 10

// Config holds the connection settings for the Gemini API.
type Config struct {
	APIKey   string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// Document is one scanned page sent to the model.
type Document struct {
	MediaType string
	Data      []byte
}

// Result holds the fields the model could read. Unreadable fields are empty.
type Result struct {
	HusbandName  string `json:"husbandName"`
	WifeName     string `json:"wifeName"`
	MarriageDate string `json:"marriageDate"`
	NomorNB      string `json:"nomorNB"`
	NomorAkta    string `json:"nomorAkta"`
	FullText     string `json:"fullText"`
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient builds a Client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type       string            `json:"type"`
	Properties map[string]schema `json:"properties,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
	ResponseSchema   schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func responseSchema() schema {
	str := schema{Type: "STRING"}
	// No field is required so that one unreadable value doesn't fail the call.
	return schema{
		Type: "OBJECT",
		Properties: map[string]schema{
			"husbandName":  str,
			"wifeName":     str,
			"marriageDate": str,
			"nomorNB":      str,
			"nomorAkta":    str,
			"fullText":     str,
		},
	}
}

func buildRequest(docs []Document) generateRequest {
	parts := make([]part, 0, len(docs)+1)
	for _, d := range docs {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: d.MediaType,
			Data:     base64.StdEncoding.EncodeToString(d.Data),
		}})
	}
	parts = append(parts, part{Text: prompt})

	return generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}
}

// Extract sends the documents to the model and parses the fields it returns.
func (c *Client) Extract(ctx context.Context, docs []Document) (*Result, error) {
	start := time.Now()
	res, err := c.extract(ctx, docs)
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	switch {
	case errors.Is(err, ErrNotConfigured):
		result = "not_configured"
	case errors.Is(err, ErrEmptyResponse):
		result = "empty"
	case err != nil:
		result = "error"
	}
	metrics.Extractions.WithLabelValues(result).Inc()
	return res, err
}

func (c *Client) extract(ctx context.Context, docs []Document) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no documents to extract from")
	}

	body, err := json.Marshal(buildRequest(docs))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(c.cfg.Endpoint, "/"), url.PathEscape(c.cfg.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}

	var text strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		if reason := out.PromptFeedback.BlockReason; reason != "" {
			return nil, fmt.Errorf("%w (blocked: %s)", ErrEmptyResponse, reason)
		}
		return nil, ErrEmptyResponse
	}

	var result Result
	if err := json.Unmarshal([]byte(text.String()), &result); err != nil {
		return nil, fmt.Errorf("parse extracted fields: %w", err)
	}
	return &result, nil
}
