package pipeline

// Stage names, in execution order
const (
	StageClassify       = "classify"
	StagePreExtract     = "pre_extract"
	StageExtract        = "extract"
	StageParseLineItems = "parse_line_items"
	StageAnalyze        = "analyze"
	StageInject         = "inject_deterministic_issues"
	StageDone           = "done"
)

// Stage statuses
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// ProgressEvent reports one stage transition
type ProgressEvent struct {
	Stage   string
	Status  string
	Payload map[string]any
}

// ProgressFunc receives progress events. Calls happen on the analyzing
// goroutine.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) emit(stage, status string, payload map[string]any) {
	if f != nil {
		f(ProgressEvent{Stage: stage, Status: status, Payload: payload})
	}
}
