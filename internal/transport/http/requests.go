// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/planagent/planning-service/internal/domain"
)

const (
	maxNameLen        = 200
	maxDescriptionLen = 1000
	maxUserIDLen      = 100
	maxStepDescLen    = 500
	maxNotesLen       = 500
)

type stepRequest struct {
	Description string   `json:"description"`
	Order       *int     `json:"order"`
	DependsOn   []string `json:"depends_on"`
	Notes       *string  `json:"notes"`
}

type createPlanRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	UserID      string        `json:"user_id"`
	Steps       []stepRequest `json:"steps"`
}

type updatePlanRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type updateStepRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

type regeneratePlanRequest struct {
	Description *string       `json:"description"`
	Steps       []stepRequest `json:"steps"`
}

// decodeJSON reads exactly one strict JSON object into dst.
func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("missing request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}

	return nil
}

func textBounds(field, value string, min, max int) error {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < min {
		return fmt.Errorf("%s must not be empty", field)
	}
	if len(value) > max {
		return fmt.Errorf("%s exceeds %d characters", field, max)
	}
	return nil
}

// validateStepRequest checks one step and converts it to domain params.
func validateStepRequest(req stepRequest) (domain.StepParams, error) {
	if err := textBounds("description", req.Description, 1, maxStepDescLen); err != nil {
		return domain.StepParams{}, err
	}

	params := domain.StepParams{Description: req.Description}

	if req.Order != nil {
		if *req.Order < 1 {
			return domain.StepParams{}, errors.New("order must be >= 1")
		}
		params.Order = *req.Order
	}

	if req.Notes != nil {
		if len(*req.Notes) > maxNotesLen {
			return domain.StepParams{}, fmt.Errorf("notes exceeds %d characters", maxNotesLen)
		}
		params.Notes = *req.Notes
	}

	for _, raw := range req.DependsOn {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.StepParams{}, fmt.Errorf("invalid depends_on id %q", raw)
		}
		params.DependsOn = append(params.DependsOn, id)
	}

	return params, nil
}

func validateStepList(reqs []stepRequest) ([]domain.StepParams, error) {
	if len(reqs) == 0 {
		return nil, errors.New("at least one step is required")
	}

	steps := make([]domain.StepParams, 0, len(reqs))
	for i, req := range reqs {
		params, err := validateStepRequest(req)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		steps = append(steps, params)
	}
	return steps, nil
}

func (req createPlanRequest) validate() (domain.CreatePlanParams, error) {
	if err := textBounds("name", req.Name, 1, maxNameLen); err != nil {
		return domain.CreatePlanParams{}, err
	}
	if err := textBounds("description", req.Description, 1, maxDescriptionLen); err != nil {
		return domain.CreatePlanParams{}, err
	}
	if err := textBounds("user_id", req.UserID, 1, maxUserIDLen); err != nil {
		return domain.CreatePlanParams{}, err
	}

	steps, err := validateStepList(req.Steps)
	if err != nil {
		return domain.CreatePlanParams{}, err
	}

	return domain.CreatePlanParams{
		Name:        req.Name,
		Description: req.Description,
		UserID:      req.UserID,
		Steps:       steps,
	}, nil
}

func (req updatePlanRequest) validate() (name, description *string, status *domain.PlanStatus, err error) {
	if req.Name != nil {
		if err := textBounds("name", *req.Name, 1, maxNameLen); err != nil {
			return nil, nil, nil, err
		}
		name = req.Name
	}
	if req.Description != nil {
		if err := textBounds("description", *req.Description, 1, maxDescriptionLen); err != nil {
			return nil, nil, nil, err
		}
		description = req.Description
	}
	if req.Status != nil {
		parsed, ok := domain.ParsePlanStatus(*req.Status)
		if !ok {
			return nil, nil, nil, fmt.Errorf("invalid plan status %q", *req.Status)
		}
		status = &parsed
	}
	return name, description, status, nil
}

func (req updateStepRequest) validate() (status *domain.StepStatus, notes *string, err error) {
	if req.Status != nil {
		parsed, ok := domain.ParseStepStatus(*req.Status)
		if !ok {
			return nil, nil, fmt.Errorf("invalid step status %q", *req.Status)
		}
		status = &parsed
	}
	if req.Notes != nil {
		if len(*req.Notes) > maxNotesLen {
			return nil, nil, fmt.Errorf("notes exceeds %d characters", maxNotesLen)
		}
		notes = req.Notes
	}
	return status, notes, nil
}

func (req regeneratePlanRequest) validate() (*string, []domain.StepParams, error) {
	if req.Description != nil {
		if err := textBounds("description", *req.Description, 1, maxDescriptionLen); err != nil {
			return nil, nil, err
		}
	}
	steps, err := validateStepList(req.Steps)
	if err != nil {
		return nil, nil, err
	}
	return req.Description, steps, nil
}
