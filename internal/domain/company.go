package domain

import (
	"fmt"
	"strings"
	"time"
)

// Company is the business record that research and reply tasks operate on.
// Name is the subject key tasks refer to; every other field is optional and
// filled in over time by research results and manual edits.
type Company struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Valuation     string `json:"valuation,omitempty"`
	FundingSeries string `json:"funding_series,omitempty"`
	URL           string `json:"url,omitempty"`
	CurrentState  string `json:"current_state,omitempty"`
	Headquarters  string `json:"headquarters,omitempty"`
	RemotePolicy  string `json:"remote_policy,omitempty"`
	EngSize       *int   `json:"eng_size,omitempty"`
	TotalSize     *int   `json:"total_size,omitempty"`
	NYAddress     string `json:"ny_address,omitempty"`
	LevelEquiv    string `json:"level_equiv,omitempty"`
	TotalComp     string `json:"total_comp,omitempty"`
	AINotes       string `json:"ai_notes,omitempty"`
	Notes         string `json:"notes,omitempty"`

	// InitialMessage is the recruiter message that started the conversation.
	InitialMessage string `json:"initial_message,omitempty"`
	// ReplyMessage is the drafted reply, written by generate_message tasks
	// or edited by hand.
	ReplyMessage string `json:"reply_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeName trims surrounding whitespace from a company name so that
// "Acme" and " Acme " address the same record.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

// Validate checks if the Company has valid data.
func (c *Company) Validate() error {
	if NormalizeName(c.Name) == "" {
		return ErrEmptyCompanyName
	}
	if c.EngSize != nil && *c.EngSize < 0 {
		return fmt.Errorf("%w: eng_size %d", ErrInvalidSize, *c.EngSize)
	}
	if c.TotalSize != nil && *c.TotalSize < 0 {
		return fmt.Errorf("%w: total_size %d", ErrInvalidSize, *c.TotalSize)
	}
	return nil
}

// textFields returns pointers to every optional string field in a fixed order.
// Merge and IsEmpty rely on two companies yielding the same order.
func (c *Company) textFields() []*string {
	return []*string{
		&c.Type,
		&c.Valuation,
		&c.FundingSeries,
		&c.URL,
		&c.CurrentState,
		&c.Headquarters,
		&c.RemotePolicy,
		&c.NYAddress,
		&c.LevelEquiv,
		&c.TotalComp,
		&c.AINotes,
		&c.Notes,
		&c.InitialMessage,
		&c.ReplyMessage,
	}
}

func (c *Company) intFields() []**int {
	return []**int{&c.EngSize, &c.TotalSize}
}

// Merge applies the present fields of patch onto c. A non-empty string or a
// non-nil size in patch replaces the stored value; an absent value never
// erases a present one. Name and timestamps are left alone.
//
// Merges of patches with disjoint present fields commute.
func (c *Company) Merge(patch *Company) {
	if patch == nil {
		return
	}

	dst, src := c.textFields(), patch.textFields()
	for i := range dst {
		if v := strings.TrimSpace(*src[i]); v != "" {
			*dst[i] = v
		}
	}

	dstInts, srcInts := c.intFields(), patch.intFields()
	for i := range dstInts {
		if *srcInts[i] != nil {
			v := **srcInts[i]
			*dstInts[i] = &v
		}
	}
}

// IsEmpty reports whether the company carries no business fields at all.
func (c *Company) IsEmpty() bool {
	for _, f := range c.textFields() {
		if strings.TrimSpace(*f) != "" {
			return false
		}
	}
	for _, f := range c.intFields() {
		if *f != nil {
			return false
		}
	}
	return true
}

// ResearchRecord returns a copy of c restricted to the fields a research
// capability is allowed to write. The recruiter conversation fields are
// owned by manual edits and reply generation.
func (c *Company) ResearchRecord() *Company {
	record := *c
	record.InitialMessage = ""
	record.ReplyMessage = ""
	record.CreatedAt = time.Time{}
	record.UpdatedAt = time.Time{}
	return &record
}

// Clone returns a deep copy of c.
func (c *Company) Clone() *Company {
	if c == nil {
		return nil
	}
	clone := *c
	if c.EngSize != nil {
		v := *c.EngSize
		clone.EngSize = &v
	}
	if c.TotalSize != nil {
		v := *c.TotalSize
		clone.TotalSize = &v
	}
	return &clone
}

// IntPtr is a small helper for building patches with size fields.
func IntPtr(v int) *int {
	return &v
}
