package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sentrycam-go/internal/platform/errors"
	"sentrycam-go/internal/platform/logging"
)

// ErrDeviceNotFound means the cast device did not answer at its address.
// It is not retried: a missing device will not appear between attempts.
var ErrDeviceNotFound = errors.New(errors.KindNotify, "notify.cast", "cast device not found")

// CastSession is one connection to a cast-capable speaker.
type CastSession interface {
	Connect(ctx context.Context) error
	SetVolume(ctx context.Context, level float64) error
	Play(ctx context.Context, mediaURL string) error
	WaitIdle(ctx context.Context) error
	Close() error
}

// SessionFactory creates a session for the device address.
type SessionFactory func(addr string, timeout time.Duration) CastSession

// ttsURL builds the public translate endpoint URL that speaks text when
// cast as a media stream.
func ttsURL(text string) string {
	return fmt.Sprintf(
		"https://translate.google.com/translate_tts?ie=UTF-8&q=%s&tl=en&client=tw-ob",
		url.QueryEscape(text))
}

// SmartSpeaker casts alerts to a Google Home style device. Connection
// failures are retried with doubling backoff; a device that is plainly
// absent fails immediately.
type SmartSpeaker struct {
	addr       string
	volume     float64
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	newSession SessionFactory
	logger     *logging.Logger
}

// SmartSpeakerOptions configures the cast backend.
type SmartSpeakerOptions struct {
	DeviceIP   string
	Volume     float64
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewSmartSpeaker creates the cast backend. A nil factory uses the built-in
// DIAL session.
func NewSmartSpeaker(opts SmartSpeakerOptions, factory SessionFactory, logger *logging.Logger) *SmartSpeaker {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if factory == nil {
		factory = func(addr string, timeout time.Duration) CastSession {
			return newDialSession(addr, timeout)
		}
	}

	return &SmartSpeaker{
		addr:       opts.DeviceIP,
		volume:     opts.Volume,
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		newSession: factory,
		logger:     logger,
	}
}

// Name returns the target identifier for this backend.
func (s *SmartSpeaker) Name() string { return "smart_speaker" }

// Send speaks the message on the device via the translate TTS stream.
func (s *SmartSpeaker) Send(ctx context.Context, message string) error {
	const op = "notify.SmartSpeaker.Send"

	session, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if s.volume > 0 {
		if err := session.SetVolume(ctx, s.volume); err != nil {
			s.logger.WarnTag("NOTIFY", "set volume failed: %v", err)
		}
	}

	if err := session.Play(ctx, ttsURL(message)); err != nil {
		return errors.Wrap(errors.KindNotify, op, "play failed", err)
	}

	return session.WaitIdle(ctx)
}

// connect retries transient connection failures only. ErrDeviceNotFound
// aborts the loop.
func (s *SmartSpeaker) connect(ctx context.Context) (CastSession, error) {
	const op = "notify.SmartSpeaker.connect"

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay * time.Duration(1<<(attempt-1))
			s.logger.WarnTag("NOTIFY", "cast connect attempt %d failed, retrying in %s", attempt, delay)
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(errors.KindNotify, op, "connect cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		session := s.newSession(s.addr, s.timeout)
		err := session.Connect(ctx)
		if err == nil {
			return session, nil
		}
		session.Close()

		if stderrors.Is(err, ErrDeviceNotFound) {
			return nil, err
		}
		lastErr = err
	}

	return nil, errors.Wrap(errors.KindNotify, op,
		fmt.Sprintf("connect failed after %d attempts", s.maxRetries), lastErr)
}

// Healthy reports whether the device answers on its cast port.
func (s *SmartSpeaker) Healthy(ctx context.Context) bool {
	session := s.newSession(s.addr, s.timeout)
	defer session.Close()
	return session.Connect(ctx) == nil
}

// dialSession drives playback through the device's DIAL endpoint. Reaching
// the cast control port proves the device exists; media is started by
// posting the stream URL to the default receiver app.
type dialSession struct {
	addr    string
	timeout time.Duration
	client  *http.Client
}

func newDialSession(addr string, timeout time.Duration) *dialSession {
	return &dialSession{
		addr:    addr,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Connect probes the cast control port.
func (d *dialSession) Connect(ctx context.Context) error {
	dialer := net.Dialer{Timeout: d.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(d.addr, "8009"))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, d.addr)
	}
	conn.Close()
	return nil
}

// SetVolume is not supported over DIAL.
func (d *dialSession) SetVolume(context.Context, float64) error { return nil }

// Play posts the media URL to the default media receiver app.
func (d *dialSession) Play(ctx context.Context, mediaURL string) error {
	endpoint := fmt.Sprintf("http://%s/apps/CC1AD845", net.JoinHostPort(d.addr, "8008"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(url.Values{"v": {mediaURL}}.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("launch media receiver: status %d", resp.StatusCode)
	}
	return nil
}

// WaitIdle gives short clips time to finish. DIAL has no playback state
// channel, so a fixed grace period stands in.
func (d *dialSession) WaitIdle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return nil
	}
}

func (d *dialSession) Close() error { return nil }
