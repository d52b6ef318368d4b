package session

import "github.com/dgnsrekt/lcap/internal/types"

// Process exit statuses. Each failure class has its own value so the
// embedding application can tell a handled provider error from an
// undeliverable result.
const (
	ExitSuccess           = 0
	ExitHandledFailure    = 1
	ExitUsage             = 2
	ExitDeliveryFailed    = 3
	ExitDependencyMissing = 4
)

// ExitCodeFor maps an error that stopped the process before or instead of
// delivery to its exit status.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	switch types.ErrorCode(err) {
	case types.CodeConfigInvalid:
		return ExitUsage
	case types.CodeDeliveryFailed:
		return ExitDeliveryFailed
	default:
		return ExitDependencyMissing
	}
}
