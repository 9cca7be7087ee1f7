package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultModel is the Whisper model used when none is configured.
const DefaultModel = "whisper-large-v3-turbo"

// Transcriber turns a WAV recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav io.Reader) (string, error)
}

// Whisper transcribes through an OpenAI-compatible
// /audio/transcriptions endpoint.
type Whisper struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// WhisperOptions configure a Whisper transcriber.
type WhisperOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewWhisper(opts WhisperOptions) *Whisper {
	w := &Whisper{
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
	}
	if w.model == "" {
		w.model = DefaultModel
	}
	if w.baseURL == "" {
		w.baseURL = GroqBaseURL
	}
	if w.client == nil {
		w.client = &http.Client{Timeout: 30 * time.Second}
	}
	return w
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (w *Whisper) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	if w.apiKey == "" {
		return "", fmt.Errorf("transcription API key not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "speech.wav")
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, wav); err != nil {
		return "", fmt.Errorf("writing audio: %w", err)
	}
	if err := mw.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("writing format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
