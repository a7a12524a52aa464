package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"text/template"

	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/generation"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// researchPromptData is the data passed to the research template.
type researchPromptData struct {
	// Content is a recruiter message or a bare company name.
	Content string
	// IsMessage is true when Content is a recruiter message.
	IsMessage bool
}

// replyPromptData is the data passed to the reply template.
type replyPromptData struct {
	Company *domain.Company
	Context string
}

// loadTemplate parses the template at path, or the embedded default named
// name when path is empty.
func loadTemplate(name, path string) (*template.Template, error) {
	var (
		content []byte
		err     error
	)
	if path != "" {
		content, err = os.ReadFile(path)
	} else {
		content, err = promptFS.ReadFile("prompts/" + name + ".tmpl")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s prompt template: %v",
			generation.ErrInvalidConfig, name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s prompt template: %v",
			generation.ErrInvalidConfig, name, err)
	}
	return tmpl, nil
}

func executeTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute %s prompt template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
