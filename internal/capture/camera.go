// Package capture reads frames from a video device.
package capture

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a single captured video frame.
type Frame struct {
	Image image.Image
	At    time.Time
	Seq   uint64
}

// Camera wraps a video capture device. Read and Stream must not be
// used concurrently.
type Camera struct {
	device string
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
}

// Open opens the capture device. The device may be an index ("0") or a
// path ("/dev/video0"). Width and height of 0 keep the device defaults.
func Open(device string, width, height int) (*Camera, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("opening capture device %s: %w", device, err)
	}

	if width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &Camera{device: device, cap: cap, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame from the device.
func (c *Camera) Read() (image.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok {
		return nil, fmt.Errorf("reading frame from %s", c.device)
	}
	if c.mat.Empty() {
		return nil, fmt.Errorf("empty frame from %s", c.device)
	}

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	return img, nil
}

// Stream reads frames until ctx is cancelled or the device fails and
// delivers them on the returned channel. The channel is closed when
// streaming stops. Frames are dropped while the consumer lags behind
// the device.
func (c *Camera) Stream(ctx context.Context) <-chan Frame {
	frames := make(chan Frame, 1)

	go func() {
		defer close(frames)
		for {
			if ctx.Err() != nil {
				return
			}

			img, err := c.Read()
			if err != nil {
				return
			}
			c.seq++

			select {
			case frames <- Frame{Image: img, At: time.Now(), Seq: c.seq}:
			default:
				// consumer busy, drop the frame
			}
		}
	}()

	return frames
}

// Close releases the device.
func (c *Camera) Close() error {
	c.mat.Close()
	return c.cap.Close()
}
