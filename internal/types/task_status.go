package types

// TaskStatus represents the state of a task in its execution lifecycle
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"   // Initial state (dependencies may be unmet)
	TaskReady     TaskStatus = "ready"     // All dependencies succeeded, eligible to run
	TaskRunning   TaskStatus = "running"   // Claimed by the external scheduler
	TaskSucceeded TaskStatus = "succeeded" // Terminal: completed successfully
	TaskFailed    TaskStatus = "failed"    // Terminal: completed with an error
	TaskCancelled TaskStatus = "cancelled" // Terminal: abandoned before completion
)

// IsValid checks if the task status value is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskPending, TaskReady, TaskRunning, TaskSucceeded, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// ValidTransitions defines the valid transitions of the task state machine.
//
// State Machine Diagram:
//
//	pending → ready → running → succeeded
//	    ↓        ↓        ↓ ↘
//	cancelled cancelled cancelled failed
//
// Valid transitions:
//   - pending → ready (all dependencies succeeded)
//   - ready → running (claimed by the scheduler)
//   - running → succeeded (work finished)
//   - running → failed (work errored)
//   - pending/ready/running → cancelled (abandoned)
//
// Terminal states (succeeded, failed, cancelled) have no outgoing
// transitions.
func (s TaskStatus) ValidTransitions() []TaskStatus {
	switch s {
	case TaskPending:
		return []TaskStatus{TaskReady, TaskCancelled}
	case TaskReady:
		return []TaskStatus{TaskRunning, TaskCancelled}
	case TaskRunning:
		return []TaskStatus{TaskSucceeded, TaskFailed, TaskCancelled}
	default:
		return []TaskStatus{}
	}
}

// CanTransitionTo checks if a transition from this status to the target is valid
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}
