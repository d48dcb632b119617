package engine

// Status is the lifecycle position of an agent run.
type Status string

const (
	StatusSeeding             Status = "seeding"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusStalled             Status = "stalled" // ended after repeated empty responses
	StatusIterationsExhausted Status = "iterations_exhausted"
	StatusCancelled           Status = "cancelled"
)

// CompletedBy records which signal ended a completed run.
type CompletedBy string

const (
	CompletedBySentinel   CompletedBy = "sentinel"
	CompletedByFinishTool CompletedBy = "finish_tool"
	CompletedByStop       CompletedBy = "natural_stop"
	CompletedBySilence    CompletedBy = "empty_responses"
)

// State is the mutable bookkeeping of one agent run. It is owned by the
// loop goroutine; hooks receive it read-only.
type State struct {
	SessionID string
	Model     string
	WorkDir   string

	Status        Status
	CompletedBy   CompletedBy
	Iteration     int
	MaxIterations int

	LastObservedTokens int
	ConsecutiveEmpty   int
	Retries            int
	Compactions        int

	Totals      Usage
	FinalText   string // last model text, or the finish tool summary
	LastFailure string
}

// IterationsRemaining returns how many model calls the run may still make.
func (s *State) IterationsRemaining() int {
	if r := s.MaxIterations - s.Iteration; r > 0 {
		return r
	}
	return 0
}

// Result is what a run reports to its caller.
type Result struct {
	Status      Status
	CompletedBy CompletedBy
	Iterations  int
	Summary     string
	Usage       Usage
}

// Completed reports whether the run ended on a completion signal.
func (r Result) Completed() bool {
	return r.Status == StatusCompleted || r.Status == StatusStalled
}
