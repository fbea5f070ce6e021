// Package planner turns an analyzed task into a weighted execution plan
// and decomposes the plan into dependency-ordered subtasks.
package planner

import (
	"fmt"
	"math"
)

// Stage is one phase of a plan. Dependencies name prerequisite stage ids.
type Stage struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ExpectedResult string   `json:"expected_result"`
	EstimatedHours float64  `json:"estimated_hours"`
	Dependencies   []string `json:"dependencies"`
	Weight         float64  `json:"weight"`
}

// Plan is a weighted stage breakdown preceding subtask decomposition.
// After enrichment every stage has a unique id and weights sum to 1.
type Plan struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	EstimatedHours float64  `json:"estimated_hours"`
	Complexity     string   `json:"complexity"`
	Stages         []*Stage `json:"stages"`
	Risks          []string `json:"risks"`
	Notes          string   `json:"notes,omitempty"`
}

// weightEpsilon is the tolerance when checking weights already sum to 1
const weightEpsilon = 1e-6

// Enrich normalizes a freshly parsed plan in place: stages missing an id
// get "stage-N" (skipping collisions with supplied ids), stages missing
// a weight get 1/N, and a missing plan estimate becomes the sum of stage
// hours.
func Enrich(p *Plan) {
	taken := make(map[string]bool, len(p.Stages))
	for _, stage := range p.Stages {
		if stage.ID != "" {
			taken[stage.ID] = true
		}
	}

	n := 1
	for _, stage := range p.Stages {
		if stage.ID != "" {
			continue
		}
		for {
			candidate := fmt.Sprintf("stage-%d", n)
			n++
			if !taken[candidate] {
				stage.ID = candidate
				taken[candidate] = true
				break
			}
		}
	}

	if len(p.Stages) > 0 {
		defaultWeight := 1.0 / float64(len(p.Stages))
		for _, stage := range p.Stages {
			if stage.Weight == 0 {
				stage.Weight = defaultWeight
			}
			if stage.Dependencies == nil {
				stage.Dependencies = []string{}
			}
		}
	}

	if p.EstimatedHours == 0 {
		var total float64
		for _, stage := range p.Stages {
			total += stage.EstimatedHours
		}
		p.EstimatedHours = total
	}
	if p.Risks == nil {
		p.Risks = []string{}
	}
}

// WeightsNormalized reports whether stage weights sum to 1 within tolerance
func WeightsNormalized(p *Plan) bool {
	if len(p.Stages) == 0 {
		return true
	}
	var sum float64
	for _, stage := range p.Stages {
		sum += stage.Weight
	}
	return math.Abs(sum-1.0) < weightEpsilon
}

// StageByID returns the stage with the given id, or nil
func (p *Plan) StageByID(id string) *Stage {
	for _, stage := range p.Stages {
		if stage.ID == id {
			return stage
		}
	}
	return nil
}
