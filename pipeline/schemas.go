package pipeline

// JSON Schemas for the built-in steps. Validation is advisory: payloads
// that fail the output schema mark the step failed with field errors,
// but the context entry is preserved for retry.

const taskUnderstandingInputSchema = `{
	"type": "object",
	"required": ["task"],
	"properties": {
		"task": {
			"type": "object",
			"properties": {
				"title": {"type": "string"},
				"description": {"type": "string"}
			}
		}
	}
}`

const taskUnderstandingOutputSchema = `{
	"type": "object",
	"required": ["task_analysis", "task_classification"],
	"properties": {
		"task_analysis": {
			"type": "object",
			"required": ["task_type", "task_description"],
			"properties": {
				"task_type": {"type": "string"},
				"task_description": {"type": "string"},
				"requirements": {"type": "array", "items": {"type": "string"}},
				"acceptance_criteria": {"type": "array", "items": {"type": "string"}},
				"ambiguities": {"type": "array", "items": {"type": "string"}},
				"clarification_questions": {"type": "array", "items": {"type": "string"}}
			}
		},
		"task_classification": {
			"type": "object",
			"properties": {
				"complexity": {"type": "string"},
				"domain": {"type": "string"},
				"tech_stack": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

const projectUnderstandingInputSchema = `{
	"type": "object",
	"required": ["project_id"],
	"properties": {
		"project_id": {"type": "string"}
	}
}`

const projectUnderstandingOutputSchema = `{
	"type": "object",
	"required": ["project_structure", "dependencies"],
	"properties": {
		"project_structure": {"type": "object"},
		"dependencies": {
			"type": "object",
			"properties": {
				"direct": {"type": "array"},
				"dev": {"type": "array"}
			}
		},
		"architecture": {"type": "object"},
		"relevant_files": {"type": "array"}
	}
}`
