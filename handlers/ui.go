package handlers

import (
	"fmt"

	"github.com/rohanthewiz/element"
	"github.com/rohanthewiz/rweb"

	"taskforge/db"
)

// dashboardHandler serves a read-only status page over the task list
func (h *Handlers) dashboardHandler(c rweb.Context) error {
	tasks, err := h.tasks.ListTasks("")
	if err != nil {
		return c.WriteError(err, 500)
	}
	return c.WriteHTML(generateDashboard(tasks))
}

func generateDashboard(tasks []*db.Task) string {
	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Title().T("TaskForge - Task Orchestration"),
			b.Meta("charset", "UTF-8"),
			b.Meta("name", "viewport", "content", "width=device-width, initial-scale=1.0"),
			b.Style().T(dashboardCSS),
		),
		b.Body().R(
			b.Div("id", "app").R(
				b.Header().R(
					b.H1().T("TaskForge"),
					b.P("class", "subtitle").T("AI-assisted task orchestration and decomposition"),
				),
				b.Div("class", "task-list").R(
					b.H2().T(fmt.Sprintf("Tasks (%d)", len(tasks))),
					b.Table().R(
						b.Tr().R(
							b.Th().T("Title"),
							b.Th().T("Priority"),
							b.Th().T("Status"),
							b.Th().T("Est. Hours"),
						),
						func() (x any) {
							for _, task := range tasks {
								hours := "-"
								if task.EstimatedHours != nil {
									hours = fmt.Sprintf("%.1f", *task.EstimatedHours)
								}
								b.Tr().R(
									b.Td().R(
										b.A("href", "/api/task/"+task.ID).T(task.Title),
									),
									b.Td("class", "priority-"+task.Priority).T(task.Priority),
									b.Td("class", "status-"+task.Status).T(task.Status),
									b.Td().T(hours),
								)
							}
							return
						}(),
					),
				),
				b.Footer().R(
					b.P().R(
						b.A("href", "/events").T("Live event stream"),
					),
				),
			),
		),
	)

	return b.String()
}

const dashboardCSS = `
body { font-family: -apple-system, sans-serif; background: #1e1e2e; color: #cdd6f4; margin: 0; }
#app { max-width: 900px; margin: 0 auto; padding: 2rem; }
header h1 { margin-bottom: 0.2rem; }
.subtitle { color: #a6adc8; margin-top: 0; }
table { width: 100%; border-collapse: collapse; margin-top: 1rem; }
th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid #313244; }
a { color: #89b4fa; text-decoration: none; }
.status-completed { color: #a6e3a1; }
.status-failed, .priority-critical { color: #f38ba8; }
.status-in_progress { color: #f9e2af; }
.priority-high { color: #fab387; }
footer { margin-top: 2rem; color: #a6adc8; }
`
