package planner

import (
	"math"
	"testing"
)

// TestEnrichAssignsIDsAndWeights tests enrichment of a bare two-stage plan
func TestEnrichAssignsIDsAndWeights(t *testing.T) {
	plan := &Plan{
		Title: "Two stage plan",
		Stages: []*Stage{
			{Name: "Design", EstimatedHours: 4},
			{Name: "Build", EstimatedHours: 4},
		},
	}

	Enrich(plan)

	if plan.Stages[0].ID != "stage-1" || plan.Stages[1].ID != "stage-2" {
		t.Errorf("Expected stage-1/stage-2 ids, got %s/%s",
			plan.Stages[0].ID, plan.Stages[1].ID)
	}
	for _, stage := range plan.Stages {
		if math.Abs(stage.Weight-0.5) > 1e-9 {
			t.Errorf("Expected weight 0.5 for %s, got %f", stage.ID, stage.Weight)
		}
	}
	if plan.EstimatedHours != 8 {
		t.Errorf("Expected 8 estimated hours, got %f", plan.EstimatedHours)
	}
	if !WeightsNormalized(plan) {
		t.Error("Expected weights to sum to 1")
	}
}

// TestEnrichSkipsIDCollisions tests that generated ids avoid supplied ones
func TestEnrichSkipsIDCollisions(t *testing.T) {
	plan := &Plan{
		Stages: []*Stage{
			{ID: "stage-1", Name: "Given"},
			{Name: "Needs id"},
		},
	}

	Enrich(plan)

	if plan.Stages[1].ID != "stage-2" {
		t.Errorf("Expected collision-free stage-2, got %s", plan.Stages[1].ID)
	}
}

// TestEnrichKeepsSuppliedValues tests that model-provided weights and
// hours are preserved
func TestEnrichKeepsSuppliedValues(t *testing.T) {
	plan := &Plan{
		EstimatedHours: 12,
		Stages: []*Stage{
			{ID: "a", Weight: 0.7, EstimatedHours: 8},
			{ID: "b", Weight: 0.3, EstimatedHours: 4},
		},
	}

	Enrich(plan)

	if plan.EstimatedHours != 12 {
		t.Errorf("Expected supplied estimate kept, got %f", plan.EstimatedHours)
	}
	if plan.Stages[0].Weight != 0.7 {
		t.Errorf("Expected supplied weight kept, got %f", plan.Stages[0].Weight)
	}
}

// TestEnrichEmptyPlan tests enrichment of a plan with no stages
func TestEnrichEmptyPlan(t *testing.T) {
	plan := &Plan{}
	Enrich(plan)

	if plan.EstimatedHours != 0 {
		t.Errorf("Expected zero hours, got %f", plan.EstimatedHours)
	}
	if !WeightsNormalized(plan) {
		t.Error("Empty plan counts as normalized")
	}
	if plan.Risks == nil {
		t.Error("Expected risks initialized to empty slice")
	}
}
