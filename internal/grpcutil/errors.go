package grpcutil

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ErrorCode(err error) codes.Code {
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}

	return codes.Unknown
}

// IsUnreachable reports whether the error indicates that the peer could not
// be reached at all, as opposed to the peer rejecting the request.
func IsUnreachable(err error) bool {
	switch ErrorCode(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return true
	default:
		return false
	}
}
