package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"sync"
)

// DeviceCamera reads a local V4L2 device through ffmpeg, one frame per sample.
type DeviceCamera struct {
	rear  string
	front string

	// replaced in tests
	lookPath func(string) (string, error)
	stat     func(string) (os.FileInfo, error)
	grab     func(ctx context.Context, device string, w, h int) ([]byte, error)

	mu   sync.Mutex
	held bool
}

// NewDeviceCamera takes the rear-facing device path and an optional front one.
func NewDeviceCamera(rear, front string) *DeviceCamera {
	return &DeviceCamera{
		rear:     rear,
		front:    front,
		lookPath: exec.LookPath,
		stat:     os.Stat,
		grab:     ffmpegGrab,
	}
}

// device picks the path for the facing mode, falling back to the other one.
func (d *DeviceCamera) device(facing string) string {
	if facing == FacingUser && d.front != "" {
		return d.front
	}
	if d.rear != "" {
		return d.rear
	}
	return d.front
}

func (d *DeviceCamera) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dev := d.device(c.FacingMode)
	if dev == "" {
		return nil, errors.New("no camera device configured")
	}
	if _, err := d.stat(dev); err != nil {
		return nil, fmt.Errorf("camera device %s: %w", dev, err)
	}
	if _, err := d.lookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not available: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held {
		return nil, ErrCameraBusy
	}
	d.held = true
	return &deviceStream{cam: d, device: dev, width: c.Width, height: c.Height}, nil
}

func (d *DeviceCamera) unhold() {
	d.mu.Lock()
	d.held = false
	d.mu.Unlock()
}

type deviceStream struct {
	cam    *DeviceCamera
	device string
	width  int
	height int

	once sync.Once
}

// Ready is always true: each Frame call grabs a fresh frame.
func (s *deviceStream) Ready() bool { return true }

func (s *deviceStream) Frame(ctx context.Context) (image.Image, error) {
	data, err := s.cam.grab(ctx, s.device, s.width, s.height)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg frame: %w", err)
	}
	return downscale(img, MaxFrameDimension), nil
}

func (s *deviceStream) Release() error {
	s.once.Do(s.cam.unhold)
	return nil
}

func ffmpegGrab(ctx context.Context, device string, w, h int) ([]byte, error) {
	args := []string{"-loglevel", "error", "-f", "v4l2"}
	if w > 0 && h > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", w, h))
	}
	args = append(args, "-i", device, "-vframes", "1", "-f", "image2", "-c:v", "mjpeg", "-")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg capture %s: %w (stderr: %s)", device, err, stderr.String())
	}
	return stdout.Bytes(), nil
}
