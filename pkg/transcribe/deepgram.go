package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"media-transcriber/pkg/models"
)

const deepgramBaseURL = "https://api.deepgram.com"

type DeepgramConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Deepgram calls the prerecorded /v1/listen endpoint with the raw audio
// file as the request body.
type Deepgram struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewDeepgram(cfg DeepgramConfig) (*Deepgram, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("deepgram: API key not set")
	}
	model := cfg.Model
	if model == "" {
		model = "nova-2"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = deepgramBaseURL
	}
	return &Deepgram{apiKey: cfg.APIKey, model: model, baseURL: base, client: httpClientOr(cfg.HTTPClient)}, nil
}

var _ Backend = (*Deepgram)(nil)

func (d *Deepgram) Name() string { return "deepgram" }

type deepgramWord struct {
	Word           string  `json:"word"`
	PunctuatedWord string  `json:"punctuated_word"`
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Confidence     float64 `json:"confidence"`
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string         `json:"transcript"`
				Words      []deepgramWord `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) query(opts Options) url.Values {
	q := url.Values{}
	q.Set("model", d.model)
	q.Set("smart_format", "true")
	q.Set("punctuate", "true")
	q.Set("utterances", "true")
	if opts.DetectLanguage {
		q.Set("detect_language", "true")
	} else if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	return q
}

func (d *Deepgram) Transcribe(ctx context.Context, audioPath string, opts Options) (*models.SegmentTranscript, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio: %w", err)
	}

	endpoint := d.baseURL + "/v1/listen?" + d.query(opts).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(audioPath))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var dr deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}
	if len(dr.Results.Channels) == 0 || len(dr.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.New("no transcription results returned from deepgram")
	}

	channel := dr.Results.Channels[0]
	alt := channel.Alternatives[0]
	out := &models.SegmentTranscript{
		Text:             alt.Transcript,
		Duration:         dr.Metadata.Duration,
		DetectedLanguage: channel.DetectedLanguage,
		Words:            make([]models.WordToken, 0, len(alt.Words)),
	}
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		out.Words = append(out.Words, models.WordToken{
			Text:       text,
			Start:      w.Start,
			End:        w.End,
			Confidence: w.Confidence,
		})
	}
	return out, nil
}
