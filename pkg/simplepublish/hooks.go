package simplepublish

import (
	"context"
)

// Hooks are optional lifecycle callbacks around write operations. They
// replace the original system's global filter registry with an explicit,
// ordered list invoked at fixed points; read-path extension goes through
// ProjectionFilter instead.

// HookContext carries information through a hook chain.
type HookContext struct {
	Context   context.Context
	Metadata  map[string]any
	StopChain bool
}

// NewHookContext creates a hook context for one chain invocation.
func NewHookContext(ctx context.Context) *HookContext {
	return &HookContext{Context: ctx, Metadata: make(map[string]any)}
}

// BeforePostCreateHook runs before post validation; it may rewrite the
// request or veto the call.
type BeforePostCreateHook func(hctx *HookContext, req *CreatePostRequest) error

// AfterPostCreateHook runs after a post is durably created.
type AfterPostCreateHook func(hctx *HookContext, post *Post) error

// AfterPostEditHook runs after a post is durably updated.
type AfterPostEditHook func(hctx *HookContext, post *Post) error

// AfterPostDeleteHook runs after a post is deleted.
type AfterPostDeleteHook func(hctx *HookContext, postID int64) error

// AfterTermsSetHook runs after one taxonomy's assignment is applied.
type AfterTermsSetHook func(hctx *HookContext, postID int64, taxonomy string, termIDs []int64) error

// ErrorHook observes operation failures. It cannot alter the error.
type ErrorHook func(hctx *HookContext, operation string, err error)

// Hooks defines the available lifecycle hooks.
type Hooks struct {
	BeforePostCreate []BeforePostCreateHook
	AfterPostCreate  []AfterPostCreateHook
	AfterPostEdit    []AfterPostEditHook
	AfterPostDelete  []AfterPostDeleteHook
	AfterTermsSet    []AfterTermsSetHook
	OnError          []ErrorHook
}

func (h *Hooks) executeBeforePostCreate(ctx context.Context, req *CreatePostRequest) error {
	if h == nil || len(h.BeforePostCreate) == 0 {
		return nil
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.BeforePostCreate {
		if err := hook(hctx, req); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterPostCreate(ctx context.Context, post *Post) error {
	if h == nil || len(h.AfterPostCreate) == 0 {
		return nil
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterPostCreate {
		if err := hook(hctx, post); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterPostEdit(ctx context.Context, post *Post) error {
	if h == nil || len(h.AfterPostEdit) == 0 {
		return nil
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterPostEdit {
		if err := hook(hctx, post); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterPostDelete(ctx context.Context, postID int64) error {
	if h == nil || len(h.AfterPostDelete) == 0 {
		return nil
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterPostDelete {
		if err := hook(hctx, postID); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeAfterTermsSet(ctx context.Context, postID int64, taxonomy string, termIDs []int64) error {
	if h == nil || len(h.AfterTermsSet) == 0 {
		return nil
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.AfterTermsSet {
		if err := hook(hctx, postID, taxonomy, termIDs); err != nil {
			return err
		}
		if hctx.StopChain {
			break
		}
	}
	return nil
}

func (h *Hooks) executeOnError(ctx context.Context, operation string, err error) {
	if h == nil || len(h.OnError) == 0 {
		return
	}
	hctx := NewHookContext(ctx)
	for _, hook := range h.OnError {
		hook(hctx, operation, err)
		if hctx.StopChain {
			break
		}
	}
}
