package planner

import (
	"sort"
	"time"

	"taskforge/db"
)

// Scoring weights for task prioritization. Deterministic weighted sum,
// fully auditable: no model calls involved.
const (
	priorityFactor   = 5
	ageFactor        = 2
	dependencyFactor = 3
	complexityFactor = 1
)

var priorityValues = map[string]float64{
	db.PriorityCritical: 10,
	db.PriorityHigh:     7,
	db.PriorityMedium:   5,
	db.PriorityLow:      2,
}

// ScoredTask pairs a task with its computed priority score
type ScoredTask struct {
	Task  *db.Task `json:"task"`
	Score float64  `json:"score"`
}

// Score computes a task's priority score at a reference time:
// priority×5 + age×2 + dependencies×3 + complexity×1. The dependency
// term is reserved and currently always 0.
func Score(task *db.Task, now time.Time) float64 {
	priority := priorityValues[task.Priority]
	if priority == 0 {
		priority = priorityValues[db.PriorityMedium]
	}

	ageDays := now.Sub(task.CreatedAt).Hours() / 24
	ageScore := ageDays / 3
	if ageScore > 10 {
		ageScore = 10
	}
	if ageScore < 0 {
		ageScore = 0
	}

	dependencyScore := 0.0

	return priority*priorityFactor +
		ageScore*ageFactor +
		dependencyScore*dependencyFactor +
		complexityScore(task.Description)*complexityFactor
}

// complexityScore buckets a task by description length as a cheap proxy
// for scope
func complexityScore(description string) float64 {
	switch n := len(description); {
	case n < 100:
		return 3
	case n < 300:
		return 5
	case n < 600:
		return 7
	default:
		return 10
	}
}

// Prioritize scores tasks and returns them highest score first.
// Ties keep the input order.
func Prioritize(tasks []*db.Task, now time.Time) []ScoredTask {
	scored := make([]ScoredTask, len(tasks))
	for i, task := range tasks {
		scored[i] = ScoredTask{Task: task, Score: Score(task, now)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}
