package logg

// Field keys shared by every component logger.
const (
	Layer     = "layer"
	Operation = "operation"
	TaskID    = "task_id"
	StepID    = "step_id"
	Action    = "action"
	Signature = "signature"
	Decision  = "decision"
	Role      = "role"
	Selector  = "selector"
	URL       = "url"
	Outcome   = "outcome"
	Driver    = "driver"
)
