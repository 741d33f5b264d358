package app

import "errors"

// ErrNotFound and related errors describe queue, sync, and lookup failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrQueueEmpty          = errors.New("queue is empty")
	ErrQueueFull           = errors.New("queue is full")
	ErrStorageWriteFailed  = errors.New("storage write failed")
	ErrRemoteApplyFailed   = errors.New("remote apply failed")
	ErrRemoteApplyRejected = errors.New("remote apply rejected")
	ErrBackoffActive       = errors.New("drain deferred by backoff")
	ErrInvalidLimit        = errors.New("invalid limit")
)

// FailureKind returns the stable label for a drain or submit failure.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRemoteApplyRejected):
		return "apply_rejected"
	case errors.Is(err, ErrRemoteApplyFailed):
		return "apply_failed"
	case errors.Is(err, ErrStorageWriteFailed):
		return "storage_write_failed"
	case errors.Is(err, ErrBackoffActive):
		return "backoff_active"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	default:
		return "error"
	}
}
