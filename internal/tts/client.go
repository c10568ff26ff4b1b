// Package tts talks to an XTTS inference server over HTTP and adapts it to the
// pipeline's Synthesizer contract.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/book-expert/voiceclone/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiConditioning   = "/v1/conditioning"
	apiLoadModel      = "/v1/model/load"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
)

// Default values.
const (
	DefaultTemperature = 0.7
	DefaultSpeed       = 0.95
	DefaultLanguage    = "en"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/wav, got %q"
	errFmtServiceErrorWithCode  = "XTTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus    = "XTTS service returned non-OK status: %s, body: %s"
)

var (
	// ErrTextEmpty is returned when a synthesis request has no text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrReferenceAudioEmpty is returned when conditioning is requested without a clip.
	ErrReferenceAudioEmpty = errors.New("at least one reference audio path is required")
	// ErrEmptyAudio is returned when the server answers with no audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrEmptyConditioning is returned when the server omits conditioning fields.
	ErrEmptyConditioning = errors.New("received empty conditioning latents")
)

// wavContentTypes lists the media types servers use for WAV payloads.
var wavContentTypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/wave":  {},
}

// HTTPClient is a client for an XTTS inference server.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// LoadModelRequest asks the server to load a fine-tuned XTTS checkpoint.
type LoadModelRequest struct {
	ConfigPath     string `json:"config_path"`
	CheckpointPath string `json:"checkpoint_path"`
	VocabPath      string `json:"vocab_path"`
	Device         string `json:"device,omitempty"`
	UseDeepspeed   bool   `json:"use_deepspeed"`
}

// ConditioningRequest asks the server to compute speaker latents from
// server-visible reference clips.
type ConditioningRequest struct {
	SpeakerRefPaths []string `json:"speaker_ref_paths"`
}

// SpeechRequest is the payload for one sentence of synthesis.
type SpeechRequest struct {
	Text         string            `json:"text"`
	Language     string            `json:"language"`
	Temperature  float64           `json:"temperature"`
	Speed        float64           `json:"speed"`
	Conditioning core.Conditioning `json:"conditioning"`
}

// ErrorResponse is the structured error body returned by the server.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the server at baseURL (for example
// "http://127.0.0.1:8020"). requestsPerSecond throttles outgoing requests; zero
// or negative disables throttling.
func NewHTTPClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *HTTPClient {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
	}
}

// LoadModel loads an XTTS checkpoint on the server.
func (c *HTTPClient) LoadModel(ctx context.Context, req LoadModelRequest) error {
	resp, err := c.postJSON(ctx, apiLoadModel, req, contentTypeJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	return nil
}

// ComputeConditioning returns speaker latents for the reference clips.
func (c *HTTPClient) ComputeConditioning(ctx context.Context, req ConditioningRequest) (core.Conditioning, error) {
	if len(req.SpeakerRefPaths) == 0 {
		return core.Conditioning{}, ErrReferenceAudioEmpty
	}

	resp, err := c.postJSON(ctx, apiConditioning, req, contentTypeJSON)
	if err != nil {
		return core.Conditioning{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Conditioning{}, c.parseErrorResponse(resp)
	}

	var cond core.Conditioning

	decodeErr := json.NewDecoder(resp.Body).Decode(&cond)
	if decodeErr != nil {
		return core.Conditioning{}, fmt.Errorf("failed to decode conditioning response: %w", decodeErr)
	}

	if len(cond.GPTCondLatent) == 0 || len(cond.SpeakerEmbedding) == 0 {
		return core.Conditioning{}, ErrEmptyConditioning
	}

	return cond, nil
}

// GenerateSpeech synthesizes one sentence and returns the WAV bytes.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}

	if req.Speed == 0 {
		req.Speed = DefaultSpeed
	}

	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	resp, err := c.postJSON(ctx, apiGenerateSpeech, req, contentTypeWAV)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)

	mediaType, _, parseErr := mime.ParseMediaType(contentType)
	if _, ok := wavContentTypes[mediaType]; parseErr != nil || !ok {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the server is up.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	waitErr := c.wait(ctx)
	if waitErr != nil {
		return waitErr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any, accept string) (*http.Response, error) {
	waitErr := c.wait(ctx)
	if waitErr != nil {
		return nil, waitErr
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, accept)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to XTTS service at %s: %w", c.baseURL, err)
	}

	return resp, nil
}

func (c *HTTPClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}
