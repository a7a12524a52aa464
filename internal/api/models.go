package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/task"
)

// CreateTaskRequest defines the payload for POST /api/tasks.
type CreateTaskRequest struct {
	Type       string          `json:"type"        validate:"required,max=64"`
	SubjectKey string          `json:"subject_key" validate:"required,max=200"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// CreateTaskResponse is returned once a task has been accepted.
type CreateTaskResponse struct {
	TaskID uuid.UUID   `json:"task_id"`
	Status task.Status `json:"status"`
}

// TaskResponse is the externally visible state of a task.
type TaskResponse struct {
	ID         uuid.UUID       `json:"id"`
	Type       task.Type       `json:"type"`
	SubjectKey string          `json:"subject_key"`
	Status     task.Status     `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

// ReplyRequest is the optional body of POST /api/companies/{name}/reply.
type ReplyRequest struct {
	Context string `json:"context" validate:"max=4000"`
}

// CompanyRequest is a partial company record for PUT /api/companies/{name}.
// Absent or empty fields leave the stored values unchanged.
type CompanyRequest struct {
	Type           string `json:"type"            validate:"max=200"`
	Valuation      string `json:"valuation"       validate:"max=200"`
	FundingSeries  string `json:"funding_series"  validate:"max=200"`
	URL            string `json:"url"             validate:"omitempty,url"`
	CurrentState   string `json:"current_state"   validate:"max=200"`
	Headquarters   string `json:"headquarters"    validate:"max=200"`
	RemotePolicy   string `json:"remote_policy"   validate:"max=200"`
	EngSize        *int   `json:"eng_size"        validate:"omitempty,gte=0"`
	TotalSize      *int   `json:"total_size"      validate:"omitempty,gte=0"`
	NYAddress      string `json:"ny_address"      validate:"max=500"`
	LevelEquiv     string `json:"level_equiv"     validate:"max=200"`
	TotalComp      string `json:"total_comp"      validate:"max=200"`
	AINotes        string `json:"ai_notes"        validate:"max=4000"`
	Notes          string `json:"notes"           validate:"max=4000"`
	InitialMessage string `json:"initial_message" validate:"max=20000"`
	ReplyMessage   string `json:"reply_message"   validate:"max=20000"`
}

// CompanyListResponse wraps a company listing.
type CompanyListResponse struct {
	Companies []*domain.Company `json:"companies"`
}

// toCompany converts the request into a patch for the named company.
func (r CompanyRequest) toCompany(name string) *domain.Company {
	return &domain.Company{
		Name:           name,
		Type:           r.Type,
		Valuation:      r.Valuation,
		FundingSeries:  r.FundingSeries,
		URL:            r.URL,
		CurrentState:   r.CurrentState,
		Headquarters:   r.Headquarters,
		RemotePolicy:   r.RemotePolicy,
		EngSize:        r.EngSize,
		TotalSize:      r.TotalSize,
		NYAddress:      r.NYAddress,
		LevelEquiv:     r.LevelEquiv,
		TotalComp:      r.TotalComp,
		AINotes:        r.AINotes,
		Notes:          r.Notes,
		InitialMessage: r.InitialMessage,
		ReplyMessage:   r.ReplyMessage,
	}
}

// taskToResponse converts a task.Task to a TaskResponse.
func taskToResponse(t *task.Task) TaskResponse {
	return TaskResponse{
		ID:         t.ID,
		Type:       t.Type,
		SubjectKey: t.SubjectKey,
		Status:     t.Status,
		Result:     t.Result,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
