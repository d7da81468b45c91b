package sandbox

import "errors"

// Error taxonomy for sandbox operations. Setup-phase failures abort with no
// state that would block a retry; runtime-phase failures inside the watcher
// are logged and survived.
var (
	ErrUnknownSandbox = errors.New("unknown sandbox")
	ErrBusy           = errors.New("sandbox is busy: another operation holds the lock")
	ErrContainerStart = errors.New("container start failed")
	ErrAttachFailed   = errors.New("attach failed")
	ErrWatcherFailed  = errors.New("sync watcher failed")
)
