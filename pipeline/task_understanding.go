package pipeline

import (
	"context"
	"regexp"
	"time"

	"github.com/rohanthewiz/logger"

	"taskforge/llm"
	"taskforge/prompts"
)

// StepNameTaskUnderstanding is the registry name of the first pipeline step
const StepNameTaskUnderstanding = "task_understanding"

// Fallback extractors applied when the model's output is not valid JSON.
// Each is independent; unmatched fields get safe defaults.
var taskAnalysisExtractors = []FieldExtractor{
	{Field: "task_type", Pattern: regexp.MustCompile(`(?i)task[_\s]?type"?\s*[:=]\s*"?([a-zA-Z_-]+)`)},
	{Field: "task_description", Pattern: regexp.MustCompile(`(?i)(?:task[_\s])?description"?\s*[:=]\s*"([^"\n]+)"`)},
	{Field: "requirements", Pattern: regexp.MustCompile(`(?m)^\s*[-*]\s+(.+)$`), List: true},
}

// TaskUnderstandingStep analyzes a submitted task: what kind of work it
// is, its requirements, acceptance criteria, and open ambiguities.
// Requires the text-generation capability; hard-fails without it.
type TaskUnderstandingStep struct {
	llm     *llm.Client
	prompts *prompts.Store
}

// NewTaskUnderstandingStep creates the step
func NewTaskUnderstandingStep(client *llm.Client, store *prompts.Store) *TaskUnderstandingStep {
	return &TaskUnderstandingStep{llm: client, prompts: store}
}

// Metadata returns the step's static contract
func (s *TaskUnderstandingStep) Metadata() StepMetadata {
	return StepMetadata{
		Name:         StepNameTaskUnderstanding,
		Description:  "Analyzes the task to extract type, requirements, and acceptance criteria",
		Timeout:      2 * time.Minute,
		MaxRetries:   2,
		RequiresLLM:  true,
		InputSchema:  taskUnderstandingInputSchema,
		OutputSchema: taskUnderstandingOutputSchema,
	}
}

// Execute renders the analysis prompt, calls the model, and parses the
// output defensively. Hard failure only on an empty task or an
// unavailable model; non-JSON output degrades to regex extraction.
func (s *TaskUnderstandingStep) Execute(ctx context.Context, taskID string, input map[string]interface{}, pc *Context) *StepResult {
	started := time.Now()
	result := newResult("task understanding")

	title, description := taskFields(input)
	if title == "" && description == "" {
		return result.fail("task has neither title nor description").finish(started)
	}
	if !s.llm.Available() {
		return result.fail("text generation capability unavailable").finish(started)
	}

	prompt, err := s.prompts.Render(StepNameTaskUnderstanding, map[string]string{
		"Title":       title,
		"Description": description,
	})
	if err != nil {
		result.warn("prompt template missing, using minimal prompt")
		prompt = "Analyze this task and respond with JSON containing task_analysis and task_classification.\n" +
			"Title: " + title + "\nDescription: " + description
	}

	output, err := s.llm.Generate(ctx, prompt, llm.GenerateOptions{ResponseFormat: "json"})
	if err != nil {
		return result.fail("model call failed: " + err.Error()).finish(started)
	}

	result.Payload = s.parse(output, result)
	result.Summary = "task analyzed"
	return result.finish(started)
}

// parse attempts strict JSON first, then field-level extraction with
// safe defaults. Never fails: a fully unusable output still yields a
// structurally valid payload with "Unknown" markers.
func (s *TaskUnderstandingStep) parse(output string, result *StepResult) map[string]interface{} {
	if parsed, ok := ParseJSON(output); ok {
		analysis := subObject(parsed, "task_analysis")
		classification := subObject(parsed, "task_classification")
		fillAnalysisDefaults(analysis)
		fillClassificationDefaults(classification)
		return map[string]interface{}{
			"task_analysis":       analysis,
			"task_classification": classification,
		}
	}

	logger.Debug("Model output was not valid JSON, applying fallback extraction")
	result.warn("model output was not valid JSON; fields recovered by fallback extraction")

	analysis := ExtractFields(output, taskAnalysisExtractors)
	fillAnalysisDefaults(analysis)
	classification := map[string]interface{}{}
	fillClassificationDefaults(classification)
	return map[string]interface{}{
		"task_analysis":       analysis,
		"task_classification": classification,
	}
}

func fillAnalysisDefaults(analysis map[string]interface{}) {
	setDefault(analysis, "task_type", "Unknown")
	setDefault(analysis, "task_description", "Unknown")
	setDefault(analysis, "requirements", []interface{}{})
	setDefault(analysis, "acceptance_criteria", []interface{}{})
	setDefault(analysis, "ambiguities", []interface{}{})
	setDefault(analysis, "clarification_questions", []interface{}{})
}

func fillClassificationDefaults(classification map[string]interface{}) {
	setDefault(classification, "complexity", "medium")
	setDefault(classification, "domain", "Unknown")
	setDefault(classification, "tech_stack", []interface{}{})
}

// taskFields pulls title and description out of the step input
func taskFields(input map[string]interface{}) (title, description string) {
	task, _ := input["task"].(map[string]interface{})
	if task == nil {
		return "", ""
	}
	title, _ = task["title"].(string)
	description, _ = task["description"].(string)
	return title, description
}

// subObject returns a named nested object, creating one if absent
func subObject(parent map[string]interface{}, key string) map[string]interface{} {
	if obj, ok := parent[key].(map[string]interface{}); ok {
		return obj
	}
	return map[string]interface{}{}
}

func setDefault(obj map[string]interface{}, key string, value interface{}) {
	if _, ok := obj[key]; !ok {
		obj[key] = value
	}
}
