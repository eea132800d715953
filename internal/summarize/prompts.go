package summarize

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	defaultSystemPrompt = "As an AI co-owner of a GitHub repository, you are responsible for conducting a comprehensive analysis of GitHub issues. " +
		"Your analytic focus encompasses distinct elements, including the issue's title, associated labels, body text, the identity of the issue's creator, their role, and the nature of the comments on the issue. " +
		"Utilizing these data points, your task is to generate a succinct, context-aware summary of the issue."

	defaultMapPrompt = "Given the issue titled '{{.Title}}' and a particular segment of body or comment text '{{.Text}}', " +
		"focus on extracting the central arguments, proposed solutions, and instances of agreement or conflict among the participants. " +
		"Generate an interim summary capturing the essential information in this section. " +
		"This will be used later to form a comprehensive summary of the entire discussion."

	defaultReducePrompt = "User '{{.Creator}}', in the role of '{{.Role}}', has filed an issue titled '{{.Title}}', labeled as '{{.Labels}}'. " +
		"The key information you've extracted from the issue's body text and comments in segmented form are: {{.Interim}}. " +
		"Concentrate on the principal arguments, suggested solutions, and areas of consensus or disagreement among the participants. " +
		"From these elements, generate a concise summary of the entire issue to inform the next course of action."

	defaultSinglePassPrompt = "{{.Text}}, concentrate on the principal arguments, suggested solutions, and areas of consensus or disagreement among the participants. " +
		"From these elements, generate a concise summary of the entire issue to inform the next course of action."
)

// Prompts holds the prompt templates. Map, Reduce and SinglePass are
// text/template sources rendered with PromptData.
type Prompts struct {
	System     string `yaml:"system"`
	Map        string `yaml:"map"`
	Reduce     string `yaml:"reduce"`
	SinglePass string `yaml:"single_pass"`
}

// PromptData is the data available to prompt templates
type PromptData struct {
	Creator string
	Role    string
	Title   string
	Labels  string // comma-separated
	Text    string // chunk or whole-thread text
	Interim string // concatenated map outputs
}

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() Prompts {
	return Prompts{
		System:     defaultSystemPrompt,
		Map:        defaultMapPrompt,
		Reduce:     defaultReducePrompt,
		SinglePass: defaultSinglePassPrompt,
	}
}

// LoadPrompts reads a YAML prompt file. Keys left out keep their defaults.
func LoadPrompts(path string) (Prompts, error) {
	prompts := DefaultPrompts()
	if path == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Prompts{}, fmt.Errorf("failed to parse prompts file %s: %w", path, err)
	}

	if override.System != "" {
		prompts.System = override.System
	}
	if override.Map != "" {
		prompts.Map = override.Map
	}
	if override.Reduce != "" {
		prompts.Reduce = override.Reduce
	}
	if override.SinglePass != "" {
		prompts.SinglePass = override.SinglePass
	}

	if _, err := prompts.compile(); err != nil {
		return Prompts{}, err
	}
	return prompts, nil
}

type templates struct {
	system     string
	mapT       *template.Template
	reduce     *template.Template
	singlePass *template.Template
}

func (p Prompts) compile() (*templates, error) {
	parse := func(name, src string) (*template.Template, error) {
		t, err := template.New(name).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid %s prompt template: %w", name, err)
		}
		// unknown fields only surface at execution time
		if err := t.Execute(io.Discard, PromptData{}); err != nil {
			return nil, fmt.Errorf("invalid %s prompt template: %w", name, err)
		}
		return t, nil
	}

	mapT, err := parse("map", p.Map)
	if err != nil {
		return nil, err
	}
	reduce, err := parse("reduce", p.Reduce)
	if err != nil {
		return nil, err
	}
	single, err := parse("single_pass", p.SinglePass)
	if err != nil {
		return nil, err
	}

	return &templates{system: p.System, mapT: mapT, reduce: reduce, singlePass: single}, nil
}

func render(t *template.Template, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
