package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed *.md
var PromptsFS embed.FS

const separator = "------------------"

// Environment describes the lake the agent is pointed at.
type Environment struct {
	Engine          string
	CatalogService  string
	DefaultCatalog  string
	DefaultDatabase string
	DefaultTable    string
	SearchCatalogs  []string
	SearchDatabases []string
}

// DefaultEnvironment is the Spark SQL / Glue lake the agent was built for.
func DefaultEnvironment() Environment {
	return Environment{
		Engine:          "Spark SQL",
		CatalogService:  "an AWS Glue catalog",
		DefaultCatalog:  "prod_catalog",
		DefaultDatabase: "adtech_db",
		DefaultTable:    "base",
		SearchCatalogs:  []string{"prod_catalog", "test_catalog"},
		SearchDatabases: []string{"adtech_db", "orbat_db"},
	}
}

// Prompts contains all the agent prompts loaded from embedded files.
type Prompts struct {
	Role         *template.Template
	Environment  *template.Template
	Rules        *template.Template
	Planning     string
	Finalization string
}

// Load loads all prompts from the embedded filesystem.
func Load() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Role, err = loadTemplate("ROLE.md"); err != nil {
		return nil, fmt.Errorf("failed to load ROLE: %w", err)
	}
	if p.Environment, err = loadTemplate("ENVIRONMENT.md"); err != nil {
		return nil, fmt.Errorf("failed to load ENVIRONMENT: %w", err)
	}
	if p.Rules, err = loadTemplate("RULES.md"); err != nil {
		return nil, fmt.Errorf("failed to load RULES: %w", err)
	}
	if p.Planning, err = loadPrompt("PLANNING.md"); err != nil {
		return nil, fmt.Errorf("failed to load PLANNING: %w", err)
	}
	if p.Finalization, err = loadPrompt("FINALIZATION.md"); err != nil {
		return nil, fmt.Errorf("failed to load FINALIZATION: %w", err)
	}

	return p, nil
}

// BuildSystemPrompt renders persona, environment and rules for env.
func (p *Prompts) BuildSystemPrompt(env Environment) (string, error) {
	sections := make([]string, 0, 3)
	for _, tmpl := range []*template.Template{p.Role, p.Environment, p.Rules} {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, env); err != nil {
			return "", fmt.Errorf("failed to render %s: %w", tmpl.Name(), err)
		}
		sections = append(sections, strings.TrimSpace(buf.String()))
	}
	return strings.Join(sections, "\n\n"), nil
}

// BuildQueryPrompt wraps query with the system prompt, ending in "QUERY :: {query}".
// A non-empty directive (e.g. /no_think) is placed on the first line.
func (p *Prompts) BuildQueryPrompt(env Environment, directive, query string) (string, error) {
	system, err := p.BuildSystemPrompt(env)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if directive != "" {
		b.WriteString(directive)
		b.WriteString("\n\n")
	}
	b.WriteString(system)
	b.WriteString("\n\n" + separator + "\n" + separator + "\n\n")
	b.WriteString("QUERY :: ")
	b.WriteString(strings.TrimSpace(query))
	return b.String(), nil
}

var funcs = template.FuncMap{
	"quoteJoin": func(values []string) string {
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = "'" + v + "'"
		}
		return strings.Join(quoted, " or ")
	},
}

func loadTemplate(path string) (*template.Template, error) {
	text, err := loadPrompt(path)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(path).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tmpl, nil
}

func loadPrompt(path string) (string, error) {
	data, err := PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
