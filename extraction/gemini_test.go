package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:   "test-key",
		Model:    "gemini-test",
		Endpoint: srv.URL + "/v1beta/",
		Timeout:  5 * time.Second,
	}, nil)
}

func modelReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	})
}

func TestExtract(t *testing.T) {
	var got generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		modelReply(w, `{"husbandName":"Ahmad Sutrisno","wifeName":"Siti Aminah","marriageDate":"2024-05-01","nomorNB":"001/2024","nomorAkta":null,"fullText":"KUTIPAN AKTA NIKAH"}`)
	})

	res, err := client.Extract(context.Background(), []Document{
		{MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		{MediaType: "application/pdf", Data: []byte("%PDF")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ahmad Sutrisno", res.HusbandName)
	assert.Equal(t, "Siti Aminah", res.WifeName)
	assert.Equal(t, "2024-05-01", res.MarriageDate)
	assert.Equal(t, "001/2024", res.NomorNB)
	assert.Empty(t, res.NomorAkta)
	assert.Equal(t, "KUTIPAN AKTA NIKAH", res.FullText)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 3)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}), parts[0].InlineData.Data)
	assert.Equal(t, "application/pdf", parts[1].InlineData.MimeType)
	assert.Contains(t, parts[2].Text, "Akta Nikah")
	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	assert.Contains(t, got.GenerationConfig.ResponseSchema.Properties, "fullText")
}

func TestExtractNotConfigured(t *testing.T) {
	client := NewClient(Config{Model: "gemini-test", Endpoint: "http://127.0.0.1:0"}, nil)
	assert.False(t, client.Configured())

	_, err := client.Extract(context.Background(), []Document{{MediaType: "image/jpeg", Data: []byte{1}}})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestExtractEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := client.Extract(context.Background(), []Document{{MediaType: "image/jpeg", Data: []byte{1}}})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestExtractAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	})

	_, err := client.Extract(context.Background(), []Document{{MediaType: "image/jpeg", Data: []byte{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestExtractMalformedModelOutput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		modelReply(w, "not json at all")
	})

	_, err := client.Extract(context.Background(), []Document{{MediaType: "image/jpeg", Data: []byte{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse extracted fields")
}

func TestExtractNoDocuments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Extract(context.Background(), nil)
	assert.Error(t, err)
}
