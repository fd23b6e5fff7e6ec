package control

import (
	"fieldsync/internal/app/client"
)

type commandInput struct {
	Body CommandRequest
}

type CommandRequest struct {
	Command string `json:"command" example:"TRIGGER_PULL" doc:"TRIGGER_PULL or TRIGGER_PUSH"`
}

type commandOutput struct {
	Body AcceptedResponse
}

type tilesInput struct {
	Body TilesRequest
}

type TilesRequest struct {
	Lat float64 `json:"lat" minimum:"-90" maximum:"90" example:"55.7558"`
	Lon float64 `json:"lon" minimum:"-180" maximum:"180" example:"37.6173"`
}

type tilesOutput struct {
	Body AcceptedResponse
}

type AcceptedResponse struct {
	Status  string `json:"status" example:"Accepted"`
	Command string `json:"command,omitempty"`
}

type statusInput struct{}

type statusOutput struct {
	Body *client.Status
}
