package session

import "sync/atomic"

// Stats counts controller outcomes for the metrics endpoint.
type Stats struct {
	started      atomic.Int64
	uploaded     atomic.Int64
	answered     atomic.Int64
	failed       atomic.Int64
	deviceErrors atomic.Int64
	speech       atomic.Int64
	speechFailed atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Started      int64
	Uploaded     int64
	Answered     int64
	Failed       int64
	DeviceErrors int64
	Speech       int64
	SpeechFailed int64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Started:      s.started.Load(),
		Uploaded:     s.uploaded.Load(),
		Answered:     s.answered.Load(),
		Failed:       s.failed.Load(),
		DeviceErrors: s.deviceErrors.Load(),
		Speech:       s.speech.Load(),
		SpeechFailed: s.speechFailed.Load(),
	}
}
