package pipeline

import (
	"time"
)

// Stage names for logging and metrics.
const (
	StageSync    = "sync"
	StageDetect  = "detect"
	StageBuild   = "build"
	StagePublish = "publish"
	StageIndex   = "index"
)

// State is a per-game pipeline state. Every game ends a run in exactly one
// terminal state: Skipped, Published, or one of the failure states.
type State string

const (
	StatePending       State = "pending"
	StateSyncing       State = "syncing"
	StateSyncFailed    State = "sync_failed"
	StateDetecting     State = "detecting"
	StateSkipped       State = "skipped"
	StateBuilding      State = "building"
	StateBuildFailed   State = "build_failed"
	StatePublishing    State = "publishing"
	StatePublishFailed State = "publish_failed"
	StatePublished     State = "published"
)

// Terminal reports whether the state ends the game's pipeline for this run.
func (s State) Terminal() bool {
	switch s {
	case StateSkipped, StatePublished, StateSyncFailed, StateBuildFailed, StatePublishFailed:
		return true
	}
	return false
}

// Failed reports whether the state is a failure terminal.
func (s State) Failed() bool {
	switch s {
	case StateSyncFailed, StateBuildFailed, StatePublishFailed:
		return true
	}
	return false
}

// FailureKind refines a failure terminal state for reporting. All kinds are
// per-game and recoverable on the next run.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	SyncUnreachable    FailureKind = "sync_unreachable"
	SyncCorrupt        FailureKind = "sync_corrupt"
	BuildTimedOut      FailureKind = "build_timed_out"
	BuildNonZeroExit   FailureKind = "build_non_zero_exit"
	BuildOutputMissing FailureKind = "build_output_missing"
	PublishFailed      FailureKind = "publish_failed"
	InternalFailure    FailureKind = "internal"
)

// GameResult is the terminal outcome of one game's pipeline in one run.
type GameResult struct {
	Name     string
	State    State
	Kind     FailureKind
	Err      error
	Version  string
	Duration time.Duration

	// Diagnostics holds captured build output when the build failed.
	Diagnostics string
}

// Outcome returns the coarse outcome label used in metrics and the summary.
func (r GameResult) Outcome() string {
	switch {
	case r.State == StatePublished:
		return "published"
	case r.State == StateSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Summary is the user-visible result of one orchestrator run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	// Results holds one entry per manifest game, in manifest order.
	Results []GameResult

	Published int
	Skipped   int
	Failed    int
}

// tally recomputes the outcome counters from Results.
func (s *Summary) tally() {
	s.Published, s.Skipped, s.Failed = 0, 0, 0
	for _, r := range s.Results {
		switch r.Outcome() {
		case "published":
			s.Published++
		case "skipped":
			s.Skipped++
		default:
			s.Failed++
		}
	}
}
