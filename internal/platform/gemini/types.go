package gemini

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

//go:embed prompts/research.schema.json
var researchSchemaJSON string

// compiledResearchSchema validates a research response before it is decoded,
// so a value of the wrong type is reported by field name.
var compiledResearchSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(researchSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal research schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("research.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add research schema: %w", err)
	}
	return c.Compile("research.schema.json")
})

// researchSchema is the JSON object the research prompt asks for. Only the
// fields a researcher may fill are present, so a response can never carry
// recruiter messages into the company record.
type researchSchema struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Valuation     string `json:"valuation"`
	FundingSeries string `json:"funding_series"`
	URL           string `json:"url"`
	CurrentState  string `json:"current_state"`
	Headquarters  string `json:"headquarters"`
	RemotePolicy  string `json:"remote_policy"`
	TotalSize     *int   `json:"total_size"`
	EngSize       *int   `json:"eng_size"`
	NYAddress     string `json:"ny_address"`
	AINotes       string `json:"ai_notes"`
}

// toCompany converts the response into a patch. Negative sizes are dropped
// rather than failing the whole research.
func (r *researchSchema) toCompany() *domain.Company {
	c := &domain.Company{
		Name:          strings.TrimSpace(r.Name),
		Type:          strings.TrimSpace(r.Type),
		Valuation:     strings.TrimSpace(r.Valuation),
		FundingSeries: strings.TrimSpace(r.FundingSeries),
		URL:           strings.TrimSpace(r.URL),
		CurrentState:  strings.TrimSpace(r.CurrentState),
		Headquarters:  strings.TrimSpace(r.Headquarters),
		RemotePolicy:  strings.TrimSpace(r.RemotePolicy),
		NYAddress:     strings.TrimSpace(r.NYAddress),
		AINotes:       strings.TrimSpace(r.AINotes),
	}
	if r.TotalSize != nil && *r.TotalSize >= 0 {
		c.TotalSize = domain.IntPtr(*r.TotalSize)
	}
	if r.EngSize != nil && *r.EngSize >= 0 {
		c.EngSize = domain.IntPtr(*r.EngSize)
	}
	return c
}
