package transcribe

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
	"strings"

	"media-transcriber/pkg/models"
)

const openAIBaseURL = "https://api.openai.com"

type WhisperConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Whisper calls OpenAI's audio transcription endpoint with verbose_json
// and word-level timestamps. The API reports no per-word confidence, so
// words carry confidence 1.
type Whisper struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("whisper: OPENAI_API_KEY not set")
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = openAIBaseURL
	}
	return &Whisper{apiKey: cfg.APIKey, model: model, baseURL: base, client: httpClientOr(cfg.HTTPClient)}, nil
}

var _ Backend = (*Whisper)(nil)

func (w *Whisper) Name() string { return "whisper" }

type whisperResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath string, opts Options) (*models.SegmentTranscript, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer file.Close()

	var requestBody bytes.Buffer
	writer := multipart.NewWriter(&requestBody)

	fileWriter, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fileWriter, file); err != nil {
		return nil, fmt.Errorf("failed to copy file data: %w", err)
	}

	writer.WriteField("model", w.model)
	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("timestamp_granularities[]", "word")
	if !opts.DetectLanguage && opts.Language != "" {
		writer.WriteField("language", opts.Language)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/v1/audio/transcriptions", &requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &models.SegmentTranscript{
		Text:     strings.TrimSpace(wr.Text),
		Duration: wr.Duration,
		Words:    make([]models.WordToken, 0, len(wr.Words)),
	}
	// reported only when detection was requested, as deepgram does
	if opts.DetectLanguage {
		out.DetectedLanguage = wr.Language
	}
	for _, word := range wr.Words {
		out.Words = append(out.Words, models.WordToken{
			Text:       strings.TrimSpace(word.Word),
			Start:      word.Start,
			End:        word.End,
			Confidence: 1,
		})
	}
	return out, nil
}
