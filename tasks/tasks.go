// Package tasks instantiates the list controller for the /tasks/
// collection. Tasks are the one entity regular users can touch: they may
// create tasks and modify those assigned to themselves.
package tasks

import (
	"context"
	"time"

	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/listview"
)

// Filter values for the completed query parameter.
const (
	FilterCompleted = "true"
	FilterPending   = "false"
)

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *int64     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed"`
}

// Params is the create/update payload. A nil AssignedTo leaves the task
// unassigned.
type Params struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AssignedTo  *int64     `json:"assigned_to"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Completed   bool       `json:"completed"`
}

const collectionPath = "/tasks/"

// Definition describes the tasks endpoint: paged, filterable by completion,
// no free-text search, owned via assigned_to.
func Definition() listview.Definition[Task] {
	return listview.Definition[Task]{
		Resource:    authz.ResourceTask,
		Path:        collectionPath,
		FilterParam: "completed",
		ID:          func(t Task) int64 { return t.ID },
		AssignedTo:  func(t Task) *int64 { return t.AssignedTo },
	}
}

func NewController(api *apiclient.Client, policy *authz.Policy, options ...listview.Option[Task]) (*listview.Controller[Task], error) {
	return listview.New(Definition(), api, policy, options...)
}

// ToggleCompleted flips a task's completion flag, subject to the same
// ownership guard as any other update.
func ToggleCompleted(ctx context.Context, c *listview.Controller[Task], task Task) error {
	return c.Update(ctx, task.ID, map[string]bool{"completed": !task.Completed})
}
