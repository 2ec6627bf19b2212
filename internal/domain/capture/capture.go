// Package capture grabs single frames from an RTSP camera. Each capture
// opens a fresh connection so a stale stream handle can never poison the
// polling loop.
package capture

import (
	"context"
	"time"

	"gocv.io/x/gocv"

	"sentrycam-go/internal/platform/errors"
)

// Frame is one captured camera image, JPEG encoded.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Source produces frames on demand.
type Source interface {
	// Capture grabs one frame. It honors ctx cancellation between the
	// connect and read phases.
	Capture(ctx context.Context) (*Frame, error)
	// Healthy reports whether the source is currently reachable.
	Healthy(ctx context.Context) bool
	Close() error
}

// RTSPSource captures frames from an RTSP (or HTTP MJPEG) camera URL.
type RTSPSource struct {
	url     string
	timeout time.Duration
}

// NewRTSPSource creates a source for the given stream URL.
func NewRTSPSource(url string, timeout time.Duration) *RTSPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RTSPSource{url: url, timeout: timeout}
}

// Capture opens the stream, reads one frame, and encodes it as JPEG.
func (s *RTSPSource) Capture(ctx context.Context) (*Frame, error) {
	const op = "capture.RTSPSource.Capture"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		frame *Frame
		err   error
	}
	done := make(chan result, 1)

	go func() {
		frame, err := s.grab()
		done <- result{frame: frame, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(errors.KindCapture, op, "capture timed out", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(errors.KindCapture, op, "capture failed", r.err)
		}
		return r.frame, nil
	}
}

// grab performs the blocking open/read/encode cycle.
func (s *RTSPSource) grab() (*Frame, error) {
	const op = "capture.RTSPSource.grab"

	stream, err := gocv.OpenVideoCapture(s.url)
	if err != nil {
		return nil, errors.Wrap(errors.KindCapture, op, "open stream", err)
	}
	defer stream.Close()

	if !stream.IsOpened() {
		return nil, errors.New(errors.KindCapture, op, "stream is not open")
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := stream.Read(&img); !ok || img.Empty() {
		return nil, errors.New(errors.KindCapture, op, "read frame returned no data")
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(errors.KindCapture, op, "encode frame", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &Frame{Data: data, CapturedAt: time.Now()}, nil
}

// Healthy attempts a single capture and reports success.
func (s *RTSPSource) Healthy(ctx context.Context) bool {
	_, err := s.Capture(ctx)
	return err == nil
}

// Close is a no-op because every capture holds its own connection.
func (s *RTSPSource) Close() error { return nil }
