package faildetector

import "time"

type Options struct {
	// PhiThreshold is the suspicion level above which a member is
	// considered suspected. Higher values tolerate more jitter at the
	// cost of slower detection.
	PhiThreshold float64

	// SuspicionWindow seeds the arrival history of newly seen members:
	// until real intervals accumulate, a member is suspected only after
	// roughly PhiThreshold * SuspicionWindow of silence.
	SuspicionWindow time.Duration

	// SampleSize is the number of arrival intervals kept per member.
	SampleSize int
}

func DefaultOptions() Options {
	return Options{
		PhiThreshold:    8.0,
		SuspicionWindow: 10 * time.Second,
		SampleSize:      100,
	}
}
