package domain

// RunStatus describes how a loop run ended.
type RunStatus string

const (
	// StatusCompleted means the iteration limit was reached.
	StatusCompleted RunStatus = "completed"
	// StatusStopped means an explicit stop was requested and honored.
	StatusStopped RunStatus = "stopped"
	// StatusFailed means the consecutive-failure budget was exhausted.
	StatusFailed RunStatus = "failed"
)

// IterationRecord captures the observable effects of one loop iteration.
// Dry runs produce records with Committed=false and an empty CommitHash.
type IterationRecord struct {
	// Index is the zero-based attempt number. Attempts are counted even
	// when the agent invocation fails.
	Index int
	// Mode is the name of the mode driven during this iteration.
	Mode string
	// AgentSucceeded reports whether the agent exited zero.
	AgentSucceeded bool
	// Committed reports whether the working tree was dirty and committed.
	Committed bool
	// CommitHash is the hash of the commit created, if any.
	CommitHash string
}

// RunReport summarizes a completed loop run.
type RunReport struct {
	RunID       string
	Status      RunStatus
	Iterations  []IterationRecord
	StartCommit string
	FinalCommit string
	// Squashed is true when the run's commits were collapsed into one.
	Squashed bool
	// SquashMessage is the message used for the squash commit, if any.
	SquashMessage string
}

// CommitCount returns the number of commits the run created.
func (r *RunReport) CommitCount() int {
	n := 0
	for _, it := range r.Iterations {
		if it.Committed {
			n++
		}
	}
	return n
}
