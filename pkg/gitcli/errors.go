package gitcli

import "errors"

var (
	// ErrPushRejected means the remote advanced past the local branch between
	// fetch and push. The losing side gives up; a later run re-evaluates from
	// fresh state.
	ErrPushRejected = errors.New("push rejected by remote")
)
