package capture

import (
	"github.com/icza/mjpeg"
	"github.com/pkg/errors"
)

// MJPEGRecorder writes composited frames into an MJPEG AVI container, the
// raw capture artifact later transcoded to the distribution format.
type MJPEGRecorder struct {
	writer mjpeg.AviWriter
	path   string
}

// NewMJPEGRecorder opens an AVI writer at the given path.
func NewMJPEGRecorder(path string, width, height, fps int) (*MJPEGRecorder, error) {
	writer, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open capture container %s", path)
	}
	return &MJPEGRecorder{writer: writer, path: path}, nil
}

// AddFrame appends one JPEG-encoded frame.
func (r *MJPEGRecorder) AddFrame(jpegData []byte) error {
	return r.writer.AddFrame(jpegData)
}

// Close finalizes the container index.
func (r *MJPEGRecorder) Close() error {
	return r.writer.Close()
}

// Path returns the container location.
func (r *MJPEGRecorder) Path() string {
	return r.path
}
