package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	skipqr "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func qrPNG(t *testing.T, payload string) []byte {
	t.Helper()
	data, err := skipqr.Encode(payload, skipqr.Medium, 320)
	require.NoError(t, err)
	return data
}

func blankPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return pngBytes(t, img)
}

func TestPushCamera_GrantPushRelease(t *testing.T) {
	cam := NewPushCamera()
	assert.ErrorIs(t, cam.Push(blankPNG(t)), ErrNoStream)

	cam.openRequest()
	require.NoError(t, cam.Grant())
	st, err := cam.Acquire(context.Background(), DefaultConstraints())
	require.NoError(t, err)
	assert.True(t, cam.Bound())
	assert.False(t, st.Ready(), "no frame yet")

	require.Error(t, cam.Push([]byte("not an image")))
	require.NoError(t, cam.Push(blankPNG(t)))
	assert.True(t, st.Ready())

	img, err := st.Frame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	require.NoError(t, st.Release())
	require.NoError(t, st.Release(), "release is idempotent")
	assert.False(t, cam.Bound())
	assert.False(t, st.Ready())
	assert.ErrorIs(t, cam.Push(blankPNG(t)), ErrNoStream)
}

func TestPushCamera_Deny(t *testing.T) {
	cam := NewPushCamera()
	cam.openRequest()
	require.NoError(t, cam.Deny("NotAllowedError"))
	_, err := cam.Acquire(context.Background(), DefaultConstraints())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotAllowedError")
}

func TestPushCamera_BusyWhileHeld(t *testing.T) {
	cam := NewPushCamera()
	cam.openRequest()
	require.NoError(t, cam.Grant())
	st, err := cam.Acquire(context.Background(), DefaultConstraints())
	require.NoError(t, err)

	cam.openRequest()
	require.NoError(t, cam.Grant())
	_, err = cam.Acquire(context.Background(), DefaultConstraints())
	assert.ErrorIs(t, err, ErrCameraBusy)
	require.NoError(t, st.Release())
}

func TestPushCamera_AnswersNeedAnOpenRequest(t *testing.T) {
	cam := NewPushCamera()
	assert.ErrorIs(t, cam.Grant(), ErrNoRequest)
	assert.ErrorIs(t, cam.Deny("stray"), ErrNoRequest)

	cam.openRequest()
	require.NoError(t, cam.Deny("first"))
	assert.ErrorIs(t, cam.Grant(), ErrAnswered)

	_, err := cam.Acquire(context.Background(), DefaultConstraints())
	require.Error(t, err)
	assert.Equal(t, "first", err.Error())
	assert.ErrorIs(t, cam.Grant(), ErrNoRequest, "answered request is closed")
}

func TestPushCamera_AcquireHonorsContext(t *testing.T) {
	cam := NewPushCamera()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cam.Acquire(ctx, DefaultConstraints())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, cam.Deny("late"), ErrNoRequest)
}

func TestDecodeFrame_DownscalesLargeFrames(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2560, 1280))
	img.Set(10, 10, color.Black)
	out, err := DecodeFrame(pngBytes(t, img))
	require.NoError(t, err)
	assert.Equal(t, 1280, out.Bounds().Dx())
	assert.Equal(t, 640, out.Bounds().Dy())

	_, err = DecodeFrame(nil)
	assert.Error(t, err)
	_, err = DecodeFrame([]byte("GIF89a......"))
	assert.Error(t, err)
}

func TestZXingDecoder(t *testing.T) {
	dec := NewZXingDecoder()
	require.True(t, dec.Available())

	img, err := DecodeFrame(qrPNG(t, "BOM-1700000000000-abc123xyz"))
	require.NoError(t, err)
	got, err := dec.Decode(img)
	require.NoError(t, err)
	assert.Equal(t, "BOM-1700000000000-abc123xyz", got)

	blank, err := DecodeFrame(blankPNG(t))
	require.NoError(t, err)
	got, err = dec.Decode(blank)
	require.NoError(t, err, "a frame without a code is inconclusive, not a fault")
	assert.Empty(t, got)
}

func TestNoDecoder(t *testing.T) {
	var d NoDecoder
	assert.False(t, d.Available())
	_, err := d.Decode(nil)
	assert.True(t, errors.Is(err, ErrDecoderMissing))
}

func TestController_PushCameraEndToEnd(t *testing.T) {
	cam := NewPushCamera()
	ctrl := NewController(cam, NewZXingDecoder(), fastConfig(), nil)

	s, err := ctrl.Open(context.Background())
	require.NoError(t, err)
	eventually(t, "requesting", func() bool { return s.State() == Requesting })

	require.NoError(t, cam.Grant())
	eventually(t, "bound", func() bool { return cam.Bound() })

	require.NoError(t, cam.Push(blankPNG(t)))
	require.NoError(t, cam.Push(qrPNG(t, "BOM-42")))

	out := waitOutcome(t, s)
	assert.Equal(t, Decoded, out.State)
	assert.Equal(t, "BOM-42", out.Payload)
	assert.False(t, out.Manual)
	assert.False(t, cam.Bound(), "stream released after decode")
	assertBalanced(t, ctrl)
}

func TestController_LateDenialDoesNotReachNextSession(t *testing.T) {
	cam := NewPushCamera()
	cfg := fastConfig()
	cfg.RequestTimeout = 30 * time.Millisecond
	ctrl := NewController(cam, NewZXingDecoder(), cfg, nil)

	s1, err := ctrl.Open(context.Background())
	require.NoError(t, err)
	out := waitOutcome(t, s1)
	require.Equal(t, Failed, out.State)
	require.ErrorIs(t, out.Err, ErrRequestTimeout)

	eventually(t, "request closed", func() bool {
		cam.mu.Lock()
		defer cam.mu.Unlock()
		return cam.pending == nil
	})
	assert.ErrorIs(t, cam.Deny("late denial for session 1"), ErrNoRequest)

	ctrl.cfg.RequestTimeout = time.Second
	s2, err := ctrl.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, cam.Grant(), "answer right after Open belongs to the new request")
	eventually(t, "bound", func() bool { return cam.Bound() })
	eventually(t, "active", func() bool { return s2.State() == Active })

	require.NoError(t, cam.Push(qrPNG(t, "BOM-2")))
	out = waitOutcome(t, s2)
	assert.Equal(t, Decoded, out.State)
	assert.Equal(t, "BOM-2", out.Payload)
	assertBalanced(t, ctrl)
}
