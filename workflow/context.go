package workflow

// Context is the ephemeral per-execution value threaded through a
// driver's step loop (spec §3). It is created when the driver begins and
// discarded when it returns; it is never persisted — the persisted
// WorkflowStatus.Steps carry the same information for post-hoc
// inspection.
type Context struct {
	WorkflowID   string
	WorkflowName string
	Input        interface{}
	CurrentStep  int

	results       map[int]interface{}
	resultsByName map[string]interface{}
}

// NewContext constructs a Context at the start of a driver run.
func NewContext(workflowID, workflowName string, input interface{}) *Context {
	return &Context{
		WorkflowID:    workflowID,
		WorkflowName:  workflowName,
		Input:         input,
		results:       make(map[int]interface{}),
		resultsByName: make(map[string]interface{}),
	}
}

// SetResult records step i's (named stepName) result, making it visible
// to every later step's transformer via GetResult/GetResultByName.
func (c *Context) SetResult(i int, stepName string, result interface{}) {
	c.results[i] = result
	c.resultsByName[stepName] = result
}

// GetResult returns the result stored for step index i.
func (c *Context) GetResult(i int) (interface{}, bool) {
	v, ok := c.results[i]
	return v, ok
}

// GetResultByName returns the result stored under step name n (last
// write wins if names repeat, mirroring Definition.StepByName).
func (c *Context) GetResultByName(n string) (interface{}, bool) {
	v, ok := c.resultsByName[n]
	return v, ok
}

// PreviousResult returns the result of the step immediately preceding
// CurrentStep, or false if CurrentStep is the first step or that step
// has no recorded result yet.
func (c *Context) PreviousResult() (interface{}, bool) {
	if c.CurrentStep <= 0 {
		return nil, false
	}
	return c.GetResult(c.CurrentStep - 1)
}
