package types

import "time"

// RunRequest is what an agent runner receives for one step dispatch.
type RunRequest struct {
	RunID    string
	Workflow string
	Step     string
	Profile  string
	Prompt   string
	Timeout  time.Duration
}

// SessionKey identifies the agent session for the step.
func (r RunRequest) SessionKey() string {
	return "workflow:" + r.Step
}
