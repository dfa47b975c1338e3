package syncer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyncInProgress is returned when another sync holds the repository lock.
// The caller decides whether to retry; Sync never blocks waiting for it.
var ErrSyncInProgress = errors.New("another sync is already running for this repository")

// RejectedPushError reports that the remote advanced again during
// reconciliation and the bounded retry did not win the race either. The
// merged state is committed locally; the next sync resumes from it.
type RejectedPushError struct {
	Remote   string
	Branch   string
	Attempts int
}

func (e *RejectedPushError) Error() string {
	return fmt.Sprintf("push to %s/%s rejected after %d attempts: remote keeps advancing, rerun sync",
		e.Remote, e.Branch, e.Attempts)
}

// fatalNetworkPatterns match git output for failures that retrying cannot
// fix: bad credentials or a remote that is not there.
var fatalNetworkPatterns = []string{
	"authentication failed",
	"permission denied",
	"could not read username",
	"could not read password",
	"repository not found",
	"does not appear to be a git repository",
	"no such remote",
	"invalid credentials",
}

// isFatalNetworkError reports whether a fetch/push failure should abort
// immediately instead of being retried with backoff.
func isFatalNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range fatalNetworkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// isRejectedPush reports whether a push failure is the non-fast-forward
// rejection a concurrent sync causes.
func isRejectedPush(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "[rejected]") ||
		strings.Contains(msg, "non-fast-forward") ||
		strings.Contains(msg, "fetch first") ||
		strings.Contains(msg, "failed to push some refs")
}
