package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rohanthewiz/logger"

	"taskforge/llm"
	"taskforge/projectfs"
	"taskforge/prompts"
)

// StepNameProjectUnderstanding is the registry name of the project analysis step
const StepNameProjectUnderstanding = "project_understanding"

// maxRelevantFiles bounds how many model-selected files are enriched
const maxRelevantFiles = 10

// ProjectUnderstandingStep surveys the project a task belongs to: a
// bounded file tree, detected dependencies, model-derived architecture,
// and model-selected relevant files with their content. Every sub-result
// degrades independently: the step succeeds even when the project path
// or the model is unavailable.
type ProjectUnderstandingStep struct {
	llm          *llm.Client
	prompts      *prompts.Store
	projectsRoot string
}

// NewProjectUnderstandingStep creates the step. projectsRoot is the
// directory under which project working trees live, keyed by project id.
func NewProjectUnderstandingStep(client *llm.Client, store *prompts.Store, projectsRoot string) *ProjectUnderstandingStep {
	return &ProjectUnderstandingStep{llm: client, prompts: store, projectsRoot: projectsRoot}
}

// Metadata returns the step's static contract
func (s *ProjectUnderstandingStep) Metadata() StepMetadata {
	return StepMetadata{
		Name:         StepNameProjectUnderstanding,
		Description:  "Surveys project structure, dependencies, and architecture",
		Timeout:      3 * time.Minute,
		MaxRetries:   1,
		RequiresLLM:  false,
		InputSchema:  projectUnderstandingInputSchema,
		OutputSchema: projectUnderstandingOutputSchema,
	}
}

// Execute builds each sub-result independently, degrading to empty
// defaults with a warning where a collaborator is unavailable
func (s *ProjectUnderstandingStep) Execute(ctx context.Context, taskID string, input map[string]interface{}, pc *Context) *StepResult {
	started := time.Now()
	result := newResult("project understanding")

	projectID, _ := input["project_id"].(string)
	scanner := projectfs.NewScanner(filepath.Join(s.projectsRoot, projectID))

	structure, err := scanner.Scan()
	if err != nil {
		result.warn("project tree unavailable: " + err.Error())
		structure = &projectfs.Structure{Languages: []string{}}
	}

	deps := scanner.DetectDependencies()

	architecture := map[string]interface{}{
		"patterns":   []interface{}{},
		"components": []interface{}{},
		"relations":  []interface{}{},
	}
	relevantFiles := []interface{}{}

	if s.llm.Available() && structure.Root != nil {
		arch, files := s.analyzeWithModel(ctx, input, structure, deps, scanner, result)
		if arch != nil {
			architecture = arch
		}
		relevantFiles = files
	} else if !s.llm.Available() {
		result.warn("text generation unavailable; architecture analysis skipped")
	}

	result.Payload = map[string]interface{}{
		"project_structure": toMap(structure),
		"dependencies":      toMap(deps),
		"architecture":      architecture,
		"relevant_files":    relevantFiles,
	}
	result.Summary = "project surveyed"
	return result.finish(started)
}

// analyzeWithModel asks the model for architecture and relevant files.
// Model or parse failure degrades with a warning rather than failing
// the step.
func (s *ProjectUnderstandingStep) analyzeWithModel(ctx context.Context, input map[string]interface{},
	structure *projectfs.Structure, deps *projectfs.Dependencies,
	scanner *projectfs.Scanner, result *StepResult) (map[string]interface{}, []interface{}) {

	taskDescription := ""
	if understanding, ok := input["task_understanding"].(map[string]interface{}); ok {
		if analysis, ok := understanding["task_analysis"].(map[string]interface{}); ok {
			taskDescription, _ = analysis["task_description"].(string)
		}
	}

	depsJSON, _ := json.Marshal(deps)
	prompt, err := s.prompts.Render(StepNameProjectUnderstanding, map[string]string{
		"TaskDescription": taskDescription,
		"FileTree":        projectfs.FormatTree(structure.Root),
		"Dependencies":    string(depsJSON),
	})
	if err != nil {
		result.warn("prompt template missing; architecture analysis skipped")
		return nil, []interface{}{}
	}

	output, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{ResponseFormat: "json"})
	if err != nil {
		result.warn("architecture analysis failed: " + err.Error())
		return nil, []interface{}{}
	}

	parsed, ok := ParseJSON(output)
	if !ok {
		result.warn("architecture analysis output was not valid JSON")
		return nil, []interface{}{}
	}

	architecture := subObject(parsed, "architecture")
	setDefault(architecture, "patterns", []interface{}{})
	setDefault(architecture, "components", []interface{}{})
	setDefault(architecture, "relations", []interface{}{})

	// Enrich model-selected paths with content; unreadable entries drop.
	relevant := []interface{}{}
	if paths, ok := parsed["relevant_files"].([]interface{}); ok {
		for _, p := range paths {
			if len(relevant) >= maxRelevantFiles {
				break
			}
			path, ok := p.(string)
			if !ok {
				continue
			}
			content, err := scanner.ReadFile(path)
			if err != nil {
				logger.Debug("Dropping unreadable relevant file", "path", path)
				continue
			}
			relevant = append(relevant, map[string]interface{}{
				"path":    path,
				"content": content,
			})
		}
	}
	return architecture, relevant
}

// toMap round-trips a struct through JSON into a generic map so payloads
// stay schema-validatable
func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
