package workflow

import "time"

// ExecutionOutcome captures what a run did before it finished or stopped.
type ExecutionOutcome struct {
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
	PlannedTasks     []string
	CompletedTasks   []string
	CommandsExecuted int
	FailedTask       string
	Phase            RunPhase
}

func (outcome *ExecutionOutcome) finish(phase RunPhase, now time.Time) {
	outcome.Phase = phase
	outcome.EndTime = now
	outcome.Duration = outcome.EndTime.Sub(outcome.StartTime)
}
