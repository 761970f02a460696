// Package progress defines the run lifecycle events emitted by the pipeline
// and the hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageAppStart    Stage = "APP_START"
	StageAppDone     Stage = "APP_DONE"
	StagePageWritten Stage = "PAGE_WRITTEN"
)

// Event captures a single milestone of a generation run.
type Event struct {
	// RunID identifies the run this event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// AppID scopes app events to a Steam appid.
	AppID int
	// TrailerFound reports whether APP_DONE captured a manifest.
	TrailerFound bool
	// Path carries the output file for PAGE_WRITTEN events.
	Path string
	// Dur captures execution latency for app and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageAppStart, StageAppDone:
		if e.AppID <= 0 {
			return errors.New("app events require an appid")
		}
	case StagePageWritten:
		if e.Path == "" {
			return errors.New("page written requires a path")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
