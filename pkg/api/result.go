package api

import "time"

// FlowResult is the outcome of one flow instance
type FlowResult struct {
	InstanceID InstanceID     `json:"instance_id"`
	Category   string         `json:"category"`
	Name       string         `json:"name"`
	State      FlowState      `json:"state"`
	Success    bool           `json:"success"`
	Finally    bool           `json:"finally,omitempty"`
	Error      error          `json:"-"`
	ErrorText  string         `json:"error,omitempty"`
	Data       map[Name]Value `json:"data"`
	StartTime  time.Time      `json:"start_time,omitzero"`
	EndTime    time.Time      `json:"end_time,omitzero"`
}

// Values returns the result data without type information
func (r *FlowResult) Values() Values {
	res := make(Values, len(r.Data))
	for k, v := range r.Data {
		res[k] = v.Value
	}
	return res
}

// WithError returns a copy of the result carrying the given error
func (r *FlowResult) WithError(err error) *FlowResult {
	res := *r
	res.Error = err
	res.ErrorText = ""
	if err != nil {
		res.ErrorText = err.Error()
	}
	return &res
}
