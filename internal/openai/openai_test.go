package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New("test-key", server.URL, providers.Config{Model: "gpt-test", PanelCount: 2}, "gpt-image-test")
	require.NoError(t, err)
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New("", "", providers.Config{}, "")
	var credErr *providers.MissingCredentialError
	require.True(t, errors.As(err, &credErr))
	assert.Equal(t, EnvAPIKey, credErr.EnvVar)
}

func TestGenerateStory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "exactly 2 panels")

		writeJSON(t, w, http.StatusOK, map[string]any{
			"choices": []map[string]any{{
				"message": map[string]string{
					"content": "```json\n{\"title\":\"Rain\",\"panels\":[{\"visual_description\":\"clouds\",\"caption\":\"It rained.\"}]}\n```",
				},
			}},
		})
	})

	story, err := client.GenerateStory(context.Background(), "rain", "en")
	require.NoError(t, err)
	assert.Equal(t, "Rain", story.Title)
	require.Len(t, story.Panels, 1)
	assert.Equal(t, "It rained.", story.Panels[0].Caption)
}

func TestGenerateStoryDegradesOnEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"choices": []any{}})
	})

	story, err := client.GenerateStory(context.Background(), "rain", "en")
	require.NoError(t, err)
	assert.Equal(t, providers.UntitledStory, story.Title)
	assert.Empty(t, story.Panels)
}

func TestGenerateStoryHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusTooManyRequests, map[string]any{"error": map[string]string{"message": "slow down"}})
	})

	_, err := client.GenerateStory(context.Background(), "rain", "en")
	assert.ErrorContains(t, err, "429")
}

func TestGenerateImage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)

		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-image-test", req.Model)
		assert.Equal(t, 1, req.N)
		assert.Empty(t, req.ResponseFormat)
		assert.Contains(t, req.Prompt, "a lighthouse")

		writeJSON(t, w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	})

	uri, err := client.GenerateImage(context.Background(), "a lighthouse", nil)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), uri)
}

func TestGenerateImageWithReferenceUsesEdits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/edits", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "gpt-image-test", r.FormValue("model"))
		assert.Contains(t, r.FormValue("prompt"), "reference image")

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "reference.png", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, data)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(pngBytes)}},
		})
	})

	uri, err := client.GenerateImage(context.Background(), "a lighthouse", &images.Image{MIMEType: "image/png", Data: pngBytes})
	require.NoError(t, err)
	assert.NotEmpty(t, uri)
}

func TestGenerateImageAbsent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"data": []any{}})
	})

	uri, err := client.GenerateImage(context.Background(), "a lighthouse", nil)
	require.NoError(t, err)
	assert.Empty(t, uri)
}
