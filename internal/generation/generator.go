package generation

import (
	"context"

	"github.com/phrazzld/jobsearch-api/internal/domain"
)

// Researcher looks up public information about a company.
type Researcher interface {
	// ResearchCompany gathers what can be learned about the company described
	// by content, which is either the recruiter's message or the bare company
	// name. The returned record carries only the fields the researcher filled;
	// absent fields are left empty so that merging it never erases data.
	ResearchCompany(ctx context.Context, content string) (*domain.Company, error)
}

// MessageGenerator drafts replies to recruiter messages.
type MessageGenerator interface {
	// GenerateReply writes a reply to company.InitialMessage. extraContext
	// holds optional instructions from the user and may be empty.
	GenerateReply(ctx context.Context, company *domain.Company, extraContext string) (string, error)
}
