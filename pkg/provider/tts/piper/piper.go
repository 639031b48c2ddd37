// Package piper provides a tts.Provider backed by a locally-running Piper
// HTTP server. Piper is a batch engine: one POST per utterance, WAV out.
// The provider parses the WAV container and hands back raw PCM.
//
// Typical usage:
//
//	p, err := piper.New("http://localhost:5000",
//	    piper.WithTimeout(10*time.Second),
//	)
//	audio, err := p.Synthesize(ctx, "knight takes f3, check", tts.Voice{})
package piper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voicemate/voicemate/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	synthesizeEndpoint = "/"
	voicesEndpoint     = "/voices"

	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds a synthesis response; a spoken chess
	// announcement is a few seconds of 22 kHz mono.
	maxResponseBytes = 16 << 20
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements tts.Provider against a Piper HTTP server. Safe for
// concurrent use; multiple Synthesize calls may run in parallel.
type Provider struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Provider targeting the Piper server at serverURL
// (e.g. "http://localhost:5000").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("piper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesizeRequest is Piper's JSON request body.
type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Synthesize renders one utterance and returns its PCM.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	if text == "" {
		return tts.Audio{}, errors.New("piper: text must not be empty")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice.ID})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.serverURL+synthesizeEndpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: synthesize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return tts.Audio{}, fmt.Errorf("piper: synthesize: server returned %s: %s",
			resp.Status, bytes.TrimSpace(msg))
	}

	wav, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: read response: %w", err)
	}

	audio, err := parseWAV(wav)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("piper: %w", err)
	}
	return audio, nil
}

// voiceInfo is one entry of Piper's /voices catalogue.
type voiceInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// ListVoices returns the server's voice catalogue.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.serverURL+voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("piper: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("piper: list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piper: list voices: server returned %s", resp.Status)
	}

	var infos []voiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("piper: decode voices: %w", err)
	}

	voices := make([]tts.Voice, 0, len(infos))
	for _, v := range infos {
		voices = append(voices, tts.Voice{ID: v.ID, Name: v.Name, Language: v.Language})
	}
	return voices, nil
}

// parseWAV extracts the PCM payload and format from a RIFF/WAVE container.
// Only 16-bit PCM is accepted, which is all Piper emits.
func parseWAV(data []byte) (tts.Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return tts.Audio{}, errors.New("response is not a RIFF/WAVE file")
	}

	var audio tts.Audio
	var haveFmt bool

	// Walk the chunk list; chunks are aligned to even offsets.
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return tts.Audio{}, errors.New("truncated WAV chunk")
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return tts.Audio{}, errors.New("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			rate := binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 || bits != 16 {
				return tts.Audio{}, fmt.Errorf("unsupported WAV format %d/%d-bit", format, bits)
			}
			audio.Channels = int(channels)
			audio.SampleRate = int(rate)
			haveFmt = true
		case "data":
			audio.PCM = data[body : body+size]
		}

		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || audio.PCM == nil {
		return tts.Audio{}, errors.New("WAV file missing fmt or data chunk")
	}
	return audio, nil
}
