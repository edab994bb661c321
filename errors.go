package looper

import "errors"

// Failure classes surfaced by the engine. All of them are recoverable:
// the failed action did not happen and session state is unchanged.
var (
	// ErrDeviceAccess: the capture device could not be opened.
	ErrDeviceAccess = errors.New("device access denied or no device")
	// ErrCaptureInit: the recording backend could not start a capture.
	ErrCaptureInit = errors.New("capture could not start")
	// ErrCaptureEnd: the device failed while stopping and flushing a
	// capture.
	ErrCaptureEnd = errors.New("capture could not be stopped")
	// ErrDecode: the captured bytes could not be converted to PCM.
	ErrDecode = errors.New("captured audio could not be decoded")
	// ErrNothingToExport: export was requested with no master loop.
	ErrNothingToExport = errors.New("nothing to export")
)

// ErrorCode maps a failure to the stable code used in bridge events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceAccess):
		return "device_access"
	case errors.Is(err, ErrCaptureInit):
		return "capture_init"
	case errors.Is(err, ErrCaptureEnd):
		return "capture_end"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrNothingToExport):
		return "export_precondition"
	default:
		return "internal"
	}
}
