package api

type (
	// StartRunRequest contains parameters for starting a new run
	StartRunRequest struct {
		Category    string          `json:"category"`
		Name        string          `json:"name"`
		ConfigName  string          `json:"config,omitempty"`
		InstanceID  InstanceID      `json:"id,omitempty"`
		Data        Values          `json:"data,omitempty"`
		Flow        *FlowDefinition `json:"flow,omitempty"`
		Breakpoints []StepID        `json:"breakpoints,omitempty"`
	}

	// RunStartedResponse is returned when a run start succeeds
	RunStartedResponse struct {
		Message    string     `json:"message"`
		InstanceID InstanceID `json:"id"`
	}

	// RunDigest provides summary information about a live run
	RunDigest struct {
		ID       InstanceID `json:"id"`
		Category string     `json:"category"`
		Name     string     `json:"name"`
		State    FlowState  `json:"state"`
	}

	// RunsListResponse contains the runs the engine is executing
	RunsListResponse struct {
		Runs  []*RunDigest `json:"runs"`
		Count int          `json:"count"`
	}

	// RunResponse is the status of a run, plus its result once it ended
	RunResponse struct {
		Status *InstanceStatus `json:"status"`
		Result *FlowResult     `json:"result,omitempty"`
	}

	// EventRequest carries the payload of an external event
	EventRequest struct {
		Payload string `json:"payload"`
	}

	// CategoriesResponse lists the flow categories of the provider
	CategoriesResponse struct {
		Categories []string `json:"categories"`
		Count      int      `json:"count"`
	}

	// FlowsListResponse lists the flow names stored under a category
	FlowsListResponse struct {
		Category string   `json:"category"`
		Flows    []string `json:"flows"`
		Count    int      `json:"count"`
	}

	// HealthResponse provides service health information
	HealthResponse struct {
		Service   string `json:"service"`
		Version   string `json:"version"`
		Status    string `json:"status"`
		Instances int    `json:"instances"`
	}

	// MessageResponse contains a simple message string
	MessageResponse struct {
		Message string `json:"message"`
	}

	// ErrorResponse contains error details for failed requests
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status,omitempty"`
	}
)

const HealthHealthy = "healthy"
