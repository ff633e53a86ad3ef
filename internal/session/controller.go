// Package session runs capture sessions: record, package, upload, render.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"voxnote/internal/backend"
	"voxnote/internal/capture"
	"voxnote/internal/container"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Backend is the subset of the speech server the controller calls.
type Backend interface {
	Upload(ctx context.Context, p backend.Payload) (backend.UploadResult, error)
	Ask(ctx context.Context, p backend.Payload) (backend.Answer, error)
	TextToSpeech(ctx context.Context, text string) (backend.Speech, error)
	ConvertToText(ctx context.Context) (backend.Transcription, error)
	Fetch(ctx context.Context, ref string) (string, error)
	FileURL(ref string) string
}

// Player plays a local audio file to completion.
type Player interface {
	Play(ctx context.Context, path string) error
}

// View receives every user-visible change. Calls are made in order from
// whichever goroutine caused the change and must not block for long.
type View interface {
	SetTimer(text string)
	SetProgress(fraction float64)
	SetStatus(status string)
	SetControls(c Controls)
	SetSubmit(enabled bool, label string)
	SetSpeech(s Speech)
	Notify(message string)
	Append(e Entry)
}

// Options tune a Controller.
type Options struct {
	Format       capture.Format
	Packager     container.Packager
	Filename     string // base upload name; the packager adds the extension
	CeilingSec   int
	ShowProgress bool
	Tick         time.Duration
	TrimSilence  bool
	VADMode      int
	Now          func() time.Time
	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

type purpose int

const (
	purposeUpload purpose = iota
	purposeAsk
)

// captureSession is owned by the controller and handed to the goroutines
// serving it; nothing outside the controller holds one.
type captureSession struct {
	id        string
	purpose   purpose
	stream    capture.Stream
	fragments [][]byte
	startedAt time.Time
	elapsed   int
	halt      chan struct{} // stops the tick
	finalized chan struct{} // closed after the last fragment
}

// Controller sequences capture sessions and the independent text actions.
// Every entry point checks the current state itself; UI control gating is
// a convenience, not the guard.
type Controller struct {
	opts    Options
	source  capture.Source
	backend Backend
	player  Player
	view    View
	logger  *logrus.Logger

	mu         sync.Mutex
	state      State
	acquiring  bool
	sess       *captureSession
	submitting bool

	stats Stats
	wg    sync.WaitGroup
}

func New(opts Options, source capture.Source, be Backend, pl Player, view View, logger *logrus.Logger) *Controller {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.CeilingSec <= 0 {
		opts.CeilingSec = 60
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Packager == nil {
		opts.Packager = container.Negotiate("wav")
	}
	if opts.Filename == "" {
		opts.Filename = "recorded_audio"
	}
	c := &Controller{
		opts:    opts,
		source:  source,
		backend: be,
		player:  pl,
		view:    view,
		logger:  logger,
	}
	view.SetTimer(FormatElapsed(0))
	view.SetStatus(StatusReady)
	view.SetControls(controlsFor(Idle))
	view.SetSubmit(true, LabelConvert)
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() StatsSnapshot { return c.stats.snapshot() }

// Wait blocks until uploads, ticks and playback started so far are done.
func (c *Controller) Wait() { c.wg.Wait() }

// Begin starts a recording that is uploaded when it ends.
func (c *Controller) Begin(ctx context.Context) error { return c.begin(ctx, purposeUpload) }

// BeginQuestion starts a recording that is sent to the question endpoint.
func (c *Controller) BeginQuestion(ctx context.Context) error { return c.begin(ctx, purposeAsk) }

func (c *Controller) begin(ctx context.Context, p purpose) error {
	c.mu.Lock()
	if c.state != Idle || c.acquiring {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: begin while %s", ErrInvalidState, state)
	}
	c.acquiring = true
	c.view.SetControls(Controls{})
	c.mu.Unlock()

	stream, err := c.source.Open(ctx, c.opts.Format)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = false
	if err != nil {
		c.logger.Warnf("open input: %v", err)
		c.view.SetControls(controlsFor(Idle))
		c.notifyInputError(err)
		return err
	}

	sess := &captureSession{
		id:        uuid.NewString(),
		purpose:   p,
		stream:    stream,
		startedAt: c.opts.Now(),
		halt:      make(chan struct{}),
		finalized: make(chan struct{}),
	}
	c.sess = sess
	c.setState(Recording)
	c.stats.started.Add(1)
	c.logger.Infof("session %s: recording (%s)", sess.id, c.opts.Packager.ContentType())

	c.view.SetTimer(FormatElapsed(0))
	if c.opts.ShowProgress {
		c.view.SetProgress(0)
	}
	c.view.SetStatus(StatusRecording)
	c.view.SetControls(controlsFor(Recording))

	c.wg.Add(2)
	go c.collect(sess)
	go c.tickLoop(sess)
	return nil
}

func (c *Controller) collect(sess *captureSession) {
	defer c.wg.Done()
	for frag := range sess.stream.Fragments() {
		c.onFragment(sess, frag)
	}
	close(sess.finalized)

	// The input went away while still recording: the audio is cut short.
	c.mu.Lock()
	early := c.sess == sess && c.state == Recording
	if early {
		c.setState(Stopping)
		close(sess.halt)
	}
	c.mu.Unlock()
	if !early {
		return
	}
	err := sess.stream.Stop()
	if err == nil {
		err = &capture.DeviceAccessError{Reason: capture.ReasonUnavailable, Err: errInputEnded}
	}
	c.interrupt(sess, err)
}

func (c *Controller) onFragment(sess *captureSession, frag []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess {
		return
	}
	sess.fragments = append(sess.fragments, frag)
}

func (c *Controller) tickLoop(sess *captureSession) {
	defer c.wg.Done()
	t := time.NewTicker(c.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-sess.halt:
			return
		case <-t.C:
			c.tick(sess)
		}
	}
}

func (c *Controller) tick(sess *captureSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess != sess || c.state != Recording {
		return
	}
	sess.elapsed = int(c.opts.Now().Sub(sess.startedAt) / time.Second)
	c.view.SetTimer(FormatElapsed(sess.elapsed))
	if c.opts.ShowProgress {
		c.view.SetProgress(Progress(sess.elapsed, c.opts.CeilingSec))
	}
}

// End stops the active recording; packaging and upload continue in the
// background. Without an active recording it logs and does nothing.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Recording {
		c.logger.Debugf("end ignored while %s", c.state)
		c.mu.Unlock()
		return nil
	}
	sess := c.sess
	c.setState(Stopping)
	close(sess.halt)
	c.view.SetStatus(StatusProcessing)
	c.view.SetControls(controlsFor(Stopping))
	c.mu.Unlock()

	stopErr := sess.stream.Stop()
	c.wg.Add(1)
	go c.finish(ctx, sess, stopErr)
	return nil
}

// finish waits for the recorder to deliver its last fragment, then packages
// and uploads. A recorder that failed to stop cleanly fails the session.
func (c *Controller) finish(ctx context.Context, sess *captureSession, stopErr error) {
	defer c.wg.Done()
	select {
	case <-sess.finalized:
	case <-ctx.Done():
		c.fail(sess, fmt.Errorf("await recorder: %w", ctx.Err()))
		return
	}
	if stopErr != nil {
		c.interrupt(sess, stopErr)
		return
	}

	c.mu.Lock()
	fragments := sess.fragments
	c.setState(Uploading)
	c.mu.Unlock()

	payload, err := c.pack(fragments)
	if err != nil {
		c.fail(sess, err)
		return
	}
	c.logger.Infof("session %s: uploading %d bytes as %s", sess.id, len(payload.Data), payload.Filename)

	switch sess.purpose {
	case purposeAsk:
		ans, err := c.backend.Ask(ctx, payload)
		if err != nil {
			c.fail(sess, err)
			return
		}
		c.complete(sess, []Entry{AnswerEntry(ans, c.backend.FileURL)})
	default:
		res, err := c.backend.Upload(ctx, payload)
		if err != nil {
			c.fail(sess, err)
			return
		}
		c.complete(sess, UploadEntries(res, c.backend.FileURL))
	}
}

func (c *Controller) pack(fragments [][]byte) (backend.Payload, error) {
	if c.opts.TrimSilence {
		trimmed, err := capture.TrimSilence(c.opts.Format, capture.Concat(fragments), c.opts.VADMode)
		if err != nil {
			c.logger.Warnf("trim silence: %v", err)
		} else {
			fragments = [][]byte{trimmed}
		}
	}
	data, err := c.opts.Packager.Package(c.opts.Format, fragments)
	if err != nil {
		return backend.Payload{}, fmt.Errorf("package recording: %w", err)
	}
	return backend.Payload{
		Data:        data,
		Filename:    c.opts.Filename + c.opts.Packager.Extension(),
		ContentType: c.opts.Packager.ContentType(),
	}, nil
}

func (c *Controller) complete(sess *captureSession, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.view.Append(e)
	}
	c.view.SetStatus(StatusSaved)
	c.setState(Done)
	c.release(sess)
	if sess.purpose == purposeAsk {
		c.stats.answered.Add(1)
	} else {
		c.stats.uploaded.Add(1)
	}
	c.logger.Infof("session %s: saved", sess.id)
}

func (c *Controller) fail(sess *captureSession, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Errorf("session %s: %v", sess.id, err)
	if sess.purpose == purposeAsk {
		c.view.Notify(msgAskFailed)
	} else {
		c.view.Notify(msgUploadFailed)
	}
	c.view.SetStatus(StatusFailed)
	c.setState(Failed)
	c.release(sess)
	c.stats.failed.Add(1)
}

// interrupt ends a session whose input failed. Nothing is uploaded.
func (c *Controller) interrupt(sess *captureSession, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Errorf("session %s: input failed: %v", sess.id, err)
	c.notifyInputError(err)
	c.view.SetStatus(StatusFailed)
	c.setState(Failed)
	c.release(sess)
	c.stats.failed.Add(1)
}

// notifyInputError shows the notice matching an input failure.
func (c *Controller) notifyInputError(err error) {
	var de *capture.DeviceAccessError
	switch {
	case capture.IsPermissionDenied(err):
		c.stats.deviceErrors.Add(1)
		c.view.Notify(msgPermissionDenied)
	case errors.As(err, &de):
		c.stats.deviceErrors.Add(1)
		c.view.Notify(msgDeviceFailed)
	default:
		c.view.Notify(msgSourceFailed)
	}
}

// release drops the finished session and re-arms the controls. Caller holds mu.
func (c *Controller) release(sess *captureSession) {
	if c.sess == sess {
		c.sess = nil
	}
	c.setState(Idle)
	c.view.SetControls(controlsFor(Idle))
}

// setState records a transition. Caller holds mu.
func (c *Controller) setState(to State) {
	from := c.state
	c.state = to
	c.logger.Debugf("state %s -> %s", from, to)
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(from, to)
	}
}

// SubmitText sends text to the speech endpoint and plays the result. The
// submit control is disabled for the duration and always restored.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return fmt.Errorf("%w: text submission already running", ErrInvalidState)
	}
	c.submitting = true
	c.view.SetSubmit(false, LabelConverting)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.view.SetSubmit(true, LabelConvert)
		c.mu.Unlock()
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		c.view.Notify(msgEmptyText)
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	sp, err := c.backend.TextToSpeech(ctx, text)
	if err != nil {
		c.stats.speechFailed.Add(1)
		c.logger.Errorf("text to speech: %v", err)
		c.view.Notify(msgSpeechFailed)
		return err
	}
	c.stats.speech.Add(1)

	view := Speech{Sentiment: sp.Sentiment}
	if sp.SentimentFile != "" {
		l := link("Sentiment file", sp.SentimentFile, c.backend.FileURL)
		view.Link = &l
	}
	if sp.LocalPath != "" {
		view.Label = "speech"
		c.view.SetSpeech(view)
		c.playAsync(ctx, sp.LocalPath, "")
	} else {
		view.Label = sp.AudioFile
		c.view.SetSpeech(view)
		c.playAsync(ctx, "", sp.AudioFile)
	}
	return nil
}

// ConvertToText asks the backend to transcribe the last upload and shows the
// text as a notice.
func (c *Controller) ConvertToText(ctx context.Context) error {
	c.mu.Lock()
	st, acquiring := c.state, c.acquiring
	c.mu.Unlock()
	if st != Idle || acquiring {
		return fmt.Errorf("%w: convert while %s", ErrInvalidState, st)
	}
	tr, err := c.backend.ConvertToText(ctx)
	if err != nil {
		c.logger.Errorf("convert to text: %v", err)
		c.view.Notify(msgConvertFailed)
		return err
	}
	if tr.Transcription == "" {
		c.view.Notify(msgNoTranscription)
		return nil
	}
	c.view.Notify("Transcription: " + tr.Transcription)
	return nil
}

// Play fetches a backend file and plays it.
func (c *Controller) Play(ctx context.Context, ref string) error {
	return c.play(ctx, "", ref)
}

func (c *Controller) playAsync(ctx context.Context, local, ref string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.play(ctx, local, ref)
	}()
}

func (c *Controller) play(ctx context.Context, local, ref string) error {
	path := local
	if path == "" {
		p, err := c.backend.Fetch(ctx, ref)
		if err != nil {
			c.logger.Errorf("fetch %s: %v", ref, err)
			c.view.Notify(msgPlaybackFailed)
			return err
		}
		path = p
	}
	if err := c.player.Play(ctx, path); err != nil {
		c.logger.Errorf("play %s: %v", path, err)
		c.view.Notify(msgPlaybackFailed)
		return err
	}
	return nil
}
