// Package backend talks to the speech server: uploads, text-to-speech,
// transcription and the question flow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options configures a Client.
type Options struct {
	BaseURL       string
	Timeout       time.Duration // zero disables the client timeout
	UploadPath    string
	SpeechPath    string
	ConvertPath   string
	AskPath       string
	FilesPath     string
	UploadField   string
	FormEncodeTTS bool
	CacheDir      string
}

// Payload is a packaged recording.
type Payload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// UploadResult is the upload endpoint's reply. File is the success marker.
type UploadResult struct {
	File          string `json:"file"`
	Transcription string `json:"transcription"`
	Sentiment     string `json:"sentiment"`
	SentimentFile string `json:"sentiment_file"`
	HistoryFile   string `json:"history_file"`
}

// Speech is a text-to-speech reply. Either AudioFile (served by the backend)
// or LocalPath (raw audio body saved to the cache dir) is set.
type Speech struct {
	AudioFile     string `json:"audio_file"`
	Sentiment     string `json:"sentiment"`
	SentimentFile string `json:"sentiment_file"`
	LocalPath     string `json:"-"`
}

// Answer is the question endpoint's reply.
type Answer struct {
	TTSFile             string `json:"tts_file"`
	TranscribedQuestion string `json:"transcribed_question"`
	AnswerText          string `json:"answer_text"`
}

// Transcription is the convert endpoint's reply.
type Transcription struct {
	Transcription string `json:"transcription"`
}

// TransportError covers network failures, non-2xx replies and replies that
// lack their success field.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrMissingField marks a 2xx reply without its success field.
var ErrMissingField = errors.New("response missing success field")

// Client is safe for concurrent use.
type Client struct {
	http *resty.Client
	opts Options
	base *url.URL
}

func New(opts Options, logger *logrus.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", opts.BaseURL)
	}
	if opts.UploadField == "" {
		opts.UploadField = "audio_data"
	}
	if opts.CacheDir == "" {
		opts.CacheDir = os.TempDir()
	}
	hc := resty.New().SetBaseURL(base.String())
	if opts.Timeout > 0 {
		hc.SetTimeout(opts.Timeout)
	}
	if logger != nil {
		hc.SetLogger(logger)
	}
	return &Client{http: hc, opts: opts, base: base}, nil
}

// Upload posts a finished recording.
func (c *Client) Upload(ctx context.Context, p Payload) (UploadResult, error) {
	var out UploadResult
	body, err := c.postAudio(ctx, "upload", c.opts.UploadPath, p)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &TransportError{Op: "upload", Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.File == "" {
		return out, &TransportError{Op: "upload", Err: fmt.Errorf("%w: file", ErrMissingField)}
	}
	return out, nil
}

// Ask posts a recorded question.
func (c *Client) Ask(ctx context.Context, p Payload) (Answer, error) {
	var out Answer
	body, err := c.postAudio(ctx, "ask", c.opts.AskPath, p)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, &TransportError{Op: "ask", Err: fmt.Errorf("decode response: %w", err)}
	}
	if out.TTSFile == "" && out.AnswerText == "" {
		return out, &TransportError{Op: "ask", Err: fmt.Errorf("%w: tts_file/answer_text", ErrMissingField)}
	}
	return out, nil
}

func (c *Client) postAudio(ctx context.Context, op, endpoint string, p Payload) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField(c.opts.UploadField, p.Filename, p.ContentType, bytes.NewReader(p.Data)).
		Post(endpoint)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.IsError() {
		return nil, &TransportError{Op: op, Status: resp.StatusCode(), Err: serverError(resp.Body())}
	}
	return resp.Body(), nil
}

// TextToSpeech submits text. JSON replies reference a served file; any
// audio/* or octet-stream reply is the audio itself.
func (c *Client) TextToSpeech(ctx context.Context, text string) (Speech, error) {
	var out Speech
	req := c.http.R().SetContext(ctx)
	if c.opts.FormEncodeTTS {
		req.SetFormData(map[string]string{"text": text})
	} else {
		req.SetHeader("Content-Type", "application/json").SetBody(map[string]string{"text": text})
	}
	resp, err := req.Post(c.opts.SpeechPath)
	if err != nil {
		return out, &TransportError{Op: "text_to_speech", Err: err}
	}
	if resp.IsError() {
		return out, &TransportError{Op: "text_to_speech", Status: resp.StatusCode(), Err: serverError(resp.Body())}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header().Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		if err := json.Unmarshal(resp.Body(), &out); err != nil {
			return out, &TransportError{Op: "text_to_speech", Err: fmt.Errorf("decode response: %w", err)}
		}
		if out.AudioFile == "" {
			return out, &TransportError{Op: "text_to_speech", Err: fmt.Errorf("%w: audio_file", ErrMissingField)}
		}
		return out, nil
	case strings.HasPrefix(mediaType, "audio/") || mediaType == "application/octet-stream":
		if len(resp.Body()) == 0 {
			return out, &TransportError{Op: "text_to_speech", Err: errors.New("empty audio body")}
		}
		dest := filepath.Join(c.opts.CacheDir, "tts-"+uuid.NewString()+audioExt(mediaType))
		if err := os.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
			return out, err
		}
		if err := os.WriteFile(dest, resp.Body(), 0o600); err != nil {
			return out, err
		}
		out.LocalPath = dest
		return out, nil
	default:
		return out, &TransportError{Op: "text_to_speech", Err: fmt.Errorf("unexpected content type %q", mediaType)}
	}
}

// ConvertToText asks the backend to transcribe the most recent upload.
func (c *Client) ConvertToText(ctx context.Context) (Transcription, error) {
	var out Transcription
	resp, err := c.http.R().SetContext(ctx).Post(c.opts.ConvertPath)
	if err != nil {
		return out, &TransportError{Op: "convert_to_text", Err: err}
	}
	if resp.IsError() {
		return out, &TransportError{Op: "convert_to_text", Status: resp.StatusCode(), Err: serverError(resp.Body())}
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return out, &TransportError{Op: "convert_to_text", Err: fmt.Errorf("decode response: %w", err)}
	}
	return out, nil
}

// FileURL resolves a file reference from a reply. Bare names live under the
// files path; absolute paths and URLs are kept.
func (c *Client) FileURL(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return ref
	}
	if strings.HasPrefix(ref, "/") {
		return c.base.String() + ref
	}
	return c.base.String() + strings.TrimRight(c.opts.FilesPath, "/") + "/" + url.PathEscape(ref)
}

// Fetch downloads a referenced file into the cache dir and returns its path.
func (c *Client) Fetch(ctx context.Context, ref string) (string, error) {
	target := c.FileURL(ref)
	name := path.Base(ref)
	if u, err := url.Parse(target); err == nil {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" || name == "" {
		name = uuid.NewString()
	}
	if err := os.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(c.opts.CacheDir, name)
	resp, err := c.http.R().SetContext(ctx).SetOutput(dest).Get(target)
	if err != nil {
		return "", &TransportError{Op: "fetch", Err: err}
	}
	if resp.IsError() {
		_ = os.Remove(dest)
		return "", &TransportError{Op: "fetch", Status: resp.StatusCode(), Err: errors.New(http.StatusText(resp.StatusCode()))}
	}
	return dest, nil
}

// Ping reports whether the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	if resp.StatusCode() >= 500 {
		return &TransportError{Op: "ping", Status: resp.StatusCode(), Err: errors.New(resp.Status())}
	}
	return nil
}

func serverError(body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return errors.New(e.Error)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response"
	}
	return errors.New(msg)
}

func audioExt(mediaType string) string {
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	}
	return ".bin"
}
