package planner

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"

	"taskforge/db"
	"taskforge/llm"
	"taskforge/pipeline"
)

// subtaskBounds returns how many subtasks to request for a stage, scaled
// by the stage's estimated hours
func subtaskBounds(hours float64) (min, max int) {
	switch {
	case hours <= 4:
		return 3, 3
	case hours <= 8:
		return 3, 5
	default:
		return 3, 8
	}
}

// draftSubtask is the model's shape for one decomposed subtask
type draftSubtask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// decomposeStages turns a plan's stages into subtasks with dependency
// edges. Cross-stage sequencing is point-to-point: when stage B depends
// on stage A, every subtask of B depends on the last subtask of A only,
// keeping the graph sparse.
func (p *Planner) decomposeStages(ctx context.Context, task *db.Task, plan *Plan) ([]*db.Subtask, map[string][]string, error) {
	var all []*db.Subtask
	edges := make(map[string][]string)
	lastOfStage := make(map[string]string) // stage id -> its last subtask id

	seq := 0
	for _, stage := range plan.Stages {
		drafts := p.draftsForStage(ctx, stage)

		var stageSubtasks []*db.Subtask
		for _, draft := range drafts {
			seq++
			sub := &db.Subtask{
				ID:             uuid.New().String(),
				TaskID:         task.ID,
				Title:          draft.Title,
				Description:    draft.Description,
				Status:         db.SubtaskStatusPending,
				SequenceNumber: seq,
			}
			stageSubtasks = append(stageSubtasks, sub)
		}

		for _, sub := range stageSubtasks {
			for _, depStageID := range stage.Dependencies {
				if lastID, ok := lastOfStage[depStageID]; ok {
					edges[sub.ID] = append(edges[sub.ID], lastID)
				}
			}
		}

		all = append(all, stageSubtasks...)
		if len(stageSubtasks) > 0 {
			lastOfStage[stage.ID] = stageSubtasks[len(stageSubtasks)-1].ID
		}
	}

	return all, edges, nil
}

// draftsForStage asks the model to split one stage, clamped to the
// stage's bounds. Model or parse failure degrades to a single subtask
// covering the whole stage.
func (p *Planner) draftsForStage(ctx context.Context, stage *Stage) []draftSubtask {
	min, max := subtaskBounds(stage.EstimatedHours)
	fallback := []draftSubtask{{
		Title:       stage.Name,
		Description: stage.Description,
	}}

	if !p.llm.Available() {
		return fallback
	}

	prompt, err := p.prompts.Render("stage_decomposition", map[string]interface{}{
		"Name":           stage.Name,
		"Description":    stage.Description,
		"ExpectedResult": stage.ExpectedResult,
		"EstimatedHours": stage.EstimatedHours,
		"Min":            min,
		"Max":            max,
	})
	if err != nil {
		logger.Debug("Decomposition prompt missing, using stage as single subtask", "stage", stage.ID)
		return fallback
	}

	output, err := p.llm.Generate(ctx, prompt, llm.GenerateOptions{ResponseFormat: "json"})
	if err != nil {
		logger.LogErr(err, "stage decomposition call failed", "stage", stage.ID)
		return fallback
	}

	parsed, ok := pipeline.ParseJSON(output)
	if !ok {
		logger.Debug("Decomposition output was not valid JSON", "stage", stage.ID)
		return fallback
	}

	raw, err := json.Marshal(parsed["subtasks"])
	if err != nil {
		return fallback
	}
	var drafts []draftSubtask
	if err := json.Unmarshal(raw, &drafts); err != nil || len(drafts) == 0 {
		return fallback
	}

	var usable []draftSubtask
	for _, draft := range drafts {
		if draft.Title == "" {
			continue
		}
		usable = append(usable, draft)
		if len(usable) >= max {
			break
		}
	}
	if len(usable) == 0 {
		return fallback
	}
	return usable
}
