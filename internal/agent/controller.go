package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/rangelab/labctl/internal/agentlog"
)

// Controller sends instructions to the red/blue agents and records both
// directions in the interaction log. Chat is orthogonal to lab state:
// it never touches the student session.
type Controller struct {
	client *Client
	log    *agentlog.Log
	models map[Role]string
}

// NewController wires the chat client, interaction log, and per-role
// model names.
func NewController(client *Client, log *agentlog.Log, redModel, blueModel string) *Controller {
	return &Controller{
		client: client,
		log:    log,
		models: map[Role]string{
			RoleRed:  redModel,
			RoleBlue: blueModel,
		},
	}
}

// Send delivers an instruction to the role's model and returns the
// response text. A failed chat call degrades to an inline error string
// rather than aborting the surrounding command; logging failures are
// reported as warnings and also never abort.
func (c *Controller) Send(ctx context.Context, role Role, instruction string) string {
	model := c.models[role]

	if err := c.log.Record(string(role), agentlog.DirectionInstruction, instruction); err != nil {
		slog.Warn("failed to record agent instruction", "agent", role, "error", err)
	}

	response, err := c.client.Chat(ctx, model, instruction, role.SystemPrompt())
	if err != nil {
		response = fmt.Sprintf("Error communicating with %s: %v", model, err)
	}

	if err := c.log.Record(string(role), agentlog.DirectionResponse, response); err != nil {
		slog.Warn("failed to record agent response", "agent", role, "error", err)
	}
	return response
}

// Status reports which role models are loaded at the chat endpoint.
type Status struct {
	RedLoaded    bool     `json:"red_agent"`
	BlueLoaded   bool     `json:"blue_agent"`
	ModelsLoaded []string `json:"models_loaded"`
}

// Status queries the endpoint's model list. An unreachable endpoint
// reports both agents unavailable rather than failing the command.
func (c *Controller) Status(ctx context.Context) Status {
	models, err := c.client.ListModels(ctx)
	if err != nil {
		slog.Warn("failed to list agent models", "error", err)
		return Status{ModelsLoaded: []string{}}
	}
	return Status{
		RedLoaded:    slices.Contains(models, c.models[RoleRed]),
		BlueLoaded:   slices.Contains(models, c.models[RoleBlue]),
		ModelsLoaded: models,
	}
}
