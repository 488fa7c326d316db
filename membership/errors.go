package membership

import "errors"

var (
	// ErrPeerUnreachable indicates a transport failure or timeout during a
	// gossip exchange. The failure is confined to the round: the peer stays
	// in the view and is eligible for selection again next round.
	ErrPeerUnreachable = errors.New("peer unreachable")

	// ErrStaleUpdate is returned when a status advance would move a member
	// backwards in the convergence order. The state is left unchanged.
	ErrStaleUpdate = errors.New("stale status update rejected")

	// ErrUnknownPeer indicates an exchange referenced a node incarnation
	// this process has already superseded. Exchange handlers respond with
	// the current state instead of failing, so the error only surfaces on
	// direct lookups.
	ErrUnknownPeer = errors.New("unknown peer incarnation")

	// ErrMalformedView is returned when a wire-decoded view is missing
	// required fields or carries an unknown status value. Nothing from the
	// offending exchange is merged.
	ErrMalformedView = errors.New("malformed cluster view")

	// ErrClosed is returned by operations on a cluster that has been shut
	// down.
	ErrClosed = errors.New("cluster is closed")
)
