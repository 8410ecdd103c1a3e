package workflow

// RunPhase enumerates the lifecycle phases of a single invocation.
type RunPhase string

// Supported run phases. A run moves forward through them and never retries one.
const (
	RunPhaseParsed       RunPhase = "parsed"
	RunPhasePlanComputed RunPhase = "plan_computed"
	RunPhaseGuardChecked RunPhase = "guard_checked"
	RunPhaseExecuting    RunPhase = "executing"
	RunPhaseDone         RunPhase = "done"
	RunPhaseFailed       RunPhase = "failed"
)
