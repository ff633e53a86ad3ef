package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"voxnote/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Options)) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts := Options{
		BaseURL:     srv.URL,
		UploadPath:  "/upload",
		SpeechPath:  "/text_to_speech",
		ConvertPath: "/convert_to_text",
		AskPath:     "/ask_book",
		FilesPath:   "/uploads",
		UploadField: "audio_data",
		CacheDir:    t.TempDir(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts, logging.NewTestLogger())
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestUploadSendsMultipartAndParsesResult(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		f, hdr, err := r.FormFile("audio_data")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "recorded_audio.webm", hdr.Filename)
		assert.Equal(t, "audio/webm", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte("abc"), data)
		writeJSON(w, http.StatusOK, map[string]string{
			"file":           "recorded_audio.webm",
			"transcription":  "20260101.txt",
			"sentiment":      "positive",
			"sentiment_file": "sent.txt",
			"history_file":   "history.txt",
		})
	})
	c := newTestClient(t, mux)

	res, err := c.Upload(context.Background(), Payload{Data: []byte("abc"), Filename: "recorded_audio.webm", ContentType: "audio/webm"})
	require.NoError(t, err)
	assert.Equal(t, UploadResult{
		File:          "recorded_audio.webm",
		Transcription: "20260101.txt",
		Sentiment:     "positive",
		SentimentFile: "sent.txt",
		HistoryFile:   "history.txt",
	}, res)
}

func TestUploadWithoutFileIsTransportError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"transcription": "x.txt"})
	}))
	_, err := c.Upload(context.Background(), Payload{Data: []byte("a"), Filename: "a.wav", ContentType: "audio/wav"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "upload", te.Op)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestUploadServerErrorCarriesStatusAndMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Speech-to-text failed"})
	}))
	_, err := c.Upload(context.Background(), Payload{Data: []byte("a"), Filename: "a.wav", ContentType: "audio/wav"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Contains(t, err.Error(), "Speech-to-text failed")
}

func TestUploadNonJSONBodyIsTransportError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	_, err := c.Upload(context.Background(), Payload{Data: []byte("a"), Filename: "a.wav", ContentType: "audio/wav"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
}

func TestUploadConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()
	c, err := New(Options{BaseURL: base, UploadPath: "/upload", CacheDir: t.TempDir()}, nil)
	require.NoError(t, err)
	_, err = c.Upload(context.Background(), Payload{Data: []byte("a"), Filename: "a.wav"})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.Status)
}

func TestTextToSpeechJSONBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text_to_speech", r.URL.Path)
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "hello there", in["text"])
		writeJSON(w, http.StatusOK, map[string]string{"audio_file": "tts_1.mp3", "sentiment": "neutral"})
	}))
	sp, err := c.TextToSpeech(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "tts_1.mp3", sp.AudioFile)
	assert.Equal(t, "neutral", sp.Sentiment)
	assert.Empty(t, sp.LocalPath)
}

func TestTextToSpeechFormBodyRawAudio(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "hi", r.PostForm.Get("text"))
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFdata"))
	}), func(o *Options) { o.FormEncodeTTS = true })

	sp, err := c.TextToSpeech(context.Background(), "hi")
	require.NoError(t, err)
	require.NotEmpty(t, sp.LocalPath)
	assert.Equal(t, ".wav", sp.LocalPath[len(sp.LocalPath)-4:])
	data, err := os.ReadFile(sp.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFFdata"), data)
}

func TestTextToSpeechMissingAudioFile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"sentiment": "neutral"})
	}))
	_, err := c.TextToSpeech(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestTextToSpeechBadRequest(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "No text provided", http.StatusBadRequest)
	}))
	_, err := c.TextToSpeech(context.Background(), "hi")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.Status)
	assert.Contains(t, te.Err.Error(), "No text provided")
}

func TestConvertToText(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"transcription": "hello world"})
	}))
	tr, err := c.ConvertToText(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", tr.Transcription)
}

func TestAskParsesAnswer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask_book", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]string{
			"tts_file":             "answer.mp3",
			"transcribed_question": "who wrote it?",
			"answer_text":          "someone",
		})
	}))
	ans, err := c.Ask(context.Background(), Payload{Data: []byte("a"), Filename: "q.wav", ContentType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, "answer.mp3", ans.TTSFile)
	assert.Equal(t, "who wrote it?", ans.TranscribedQuestion)
	assert.Equal(t, "someone", ans.AnswerText)
}

func TestAskEmptyAnswerFails(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"transcribed_question": "q"})
	}))
	_, err := c.Ask(context.Background(), Payload{Data: []byte("a"), Filename: "q.wav"})
	assert.True(t, errors.Is(err, ErrMissingField))
}

func TestFileURL(t *testing.T) {
	c, err := New(Options{BaseURL: "http://host:8080/", FilesPath: "/uploads/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://host:8080/uploads/recorded_audio.mp3", c.FileURL("recorded_audio.mp3"))
	assert.Equal(t, "http://host:8080/uploads/a%20b.mp3", c.FileURL("a b.mp3"))
	assert.Equal(t, "http://host:8080/static/x.mp3", c.FileURL("/static/x.mp3"))
	assert.Equal(t, "https://cdn.test/x.mp3", c.FileURL("https://cdn.test/x.mp3"))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestFetchDownloadsToCache(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/uploads/a.mp3", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ID3"))
	})
	c := newTestClient(t, mux)

	p, err := c.Fetch(context.Background(), "a.mp3")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)

	_, err = c.Fetch(context.Background(), "missing.mp3")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.Status)
}

func TestFetchDropsQueryFromCachedName(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/uploads/a.mp3", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("sig"))
		_, _ = w.Write([]byte("ID3"))
	})
	c := newTestClient(t, mux)

	p, err := c.Fetch(context.Background(), c.base.String()+"/uploads/a.mp3?sig=abc")
	require.NoError(t, err)
	assert.Equal(t, "a.mp3", filepath.Base(p))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), data)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	assert.NoError(t, c.Ping(context.Background()))
}
