package listview

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-crm-client/apierror"
)

// Create posts a new item and refetches the current page on success. The UI
// is expected to hide the affordance when the policy forbids it; the
// controller still refuses defensively with a Forbidden error and performs
// no request.
func (c *Controller[T]) Create(ctx context.Context, payload any) error {
	if !c.policy.CanCreate(c.def.Resource) {
		return apierror.New(apierror.KindForbidden, fmt.Sprintf("not permitted to create %s", c.def.Resource))
	}

	c.lock.Lock()
	if c.creating {
		c.lock.Unlock()
		return ErrRequestInFlight
	}
	c.creating = true
	c.lock.Unlock()
	defer func() {
		c.lock.Lock()
		c.creating = false
		c.lock.Unlock()
	}()

	if err := c.api.Post(ctx, c.def.Path, payload, nil); err != nil {
		return c.mutationFailure(err, "create")
	}
	return c.FetchPage(ctx)
}

// Update patches an existing item and refetches the current page on
// success. On failure the list state is left untouched; there is no
// optimistic update to roll back.
func (c *Controller[T]) Update(ctx context.Context, id int64, payload any) error {
	if !c.policy.CanModify(c.def.Resource, c.assigneeOf(id)) {
		return apierror.New(apierror.KindForbidden, fmt.Sprintf("not permitted to modify %s %d", c.def.Resource, id))
	}

	if err := c.beginMutation(id); err != nil {
		return err
	}
	defer c.endMutation(id)

	if err := c.api.Patch(ctx, c.itemPath(id), payload, nil); err != nil {
		return c.mutationFailure(err, "update")
	}
	return c.FetchPage(ctx)
}

// BeginDelete marks an item for deletion. The deletion itself only happens
// through ConfirmDelete, so no destructive action is a single step.
func (c *Controller[T]) BeginDelete(id int64) error {
	if !c.policy.CanModify(c.def.Resource, c.assigneeOf(id)) {
		return apierror.New(apierror.KindForbidden, fmt.Sprintf("not permitted to delete %s %d", c.def.Resource, id))
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pendingDelete = &id
	return nil
}

// CancelDelete abandons a pending deletion.
func (c *Controller[T]) CancelDelete() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pendingDelete = nil
}

// PendingDelete returns the id awaiting confirmation, if any.
func (c *Controller[T]) PendingDelete() (int64, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.pendingDelete == nil {
		return 0, false
	}
	return *c.pendingDelete, true
}

// ConfirmDelete commits the pending deletion and refetches the current page
// on success. The pending mark is consumed either way.
func (c *Controller[T]) ConfirmDelete(ctx context.Context) error {
	c.lock.Lock()
	if c.pendingDelete == nil {
		c.lock.Unlock()
		return ErrNoPendingDelete
	}
	id := *c.pendingDelete
	c.pendingDelete = nil
	c.lock.Unlock()

	// Permission is re-checked at commit time; the session may have changed
	// between the two steps.
	if !c.policy.CanModify(c.def.Resource, c.assigneeOf(id)) {
		return apierror.New(apierror.KindForbidden, fmt.Sprintf("not permitted to delete %s %d", c.def.Resource, id))
	}

	if err := c.beginMutation(id); err != nil {
		return err
	}
	defer c.endMutation(id)

	if err := c.api.Delete(ctx, c.itemPath(id)); err != nil {
		return c.mutationFailure(err, "delete")
	}
	return c.FetchPage(ctx)
}

func (c *Controller[T]) itemPath(id int64) string {
	return fmt.Sprintf("%s%d/", c.def.Path, id)
}

// assigneeOf resolves the owning user of the item with the given id from
// the currently loaded page. Unknown items resolve to nil, which makes
// non-admin ownership checks fail closed.
func (c *Controller[T]) assigneeOf(id int64) *int64 {
	if c.def.AssignedTo == nil {
		return nil
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, item := range c.items {
		if c.def.ID(item) == id {
			return c.def.AssignedTo(item)
		}
	}
	return nil
}

// beginMutation rejects a second in-flight mutation for the same item.
func (c *Controller[T]) beginMutation(id int64) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.mutating[id] {
		return ErrRequestInFlight
	}
	c.mutating[id] = true
	return nil
}

func (c *Controller[T]) endMutation(id int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.mutating, id)
}

// mutationFailure classifies a failed mutation. The list state is left
// untouched; a 401 fires the unauthorized hook like any other request.
func (c *Controller[T]) mutationFailure(err error, op string) error {
	apiErr := apierror.From(err)
	c.log.Warn().Str("op", op).Str("kind", string(apiErr.Kind)).Msg("mutation failed")
	if apiErr.Kind == apierror.KindUnauthorized {
		c.lock.Lock()
		c.fireUnauthorizedLocked()
		c.lock.Unlock()
	}
	return apiErr
}
