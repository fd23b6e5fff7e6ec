package health

// Input represents the input for health check endpoint
type Input struct{}

// Output represents the output for health check endpoint
type Output struct {
	Body Response
}

// Response represents the health check response
type Response struct {
	Status    string `json:"status" example:"OK" doc:"Health status of the service"`
	Component string `json:"component,omitempty" example:"sync-server" doc:"Name of the checked component"`
	Detail    string `json:"detail,omitempty" doc:"Extra state of the component"`
}
