package session

import (
	"errors"
	"fmt"

	"github.com/bazelment/convstate/model"
	"github.com/bazelment/convstate/permission"
)

// Sentinel errors for caller mistakes.
var (
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrUnknownRequest = permission.ErrUnknownRequest
	ErrNoPlanPending  = permission.ErrNoPlanPending
	ErrNoQuestion     = permission.ErrNoQuestion
	ErrInvalidMode    = permission.ErrInvalidMode
)

// EffectError reports that the responder failed to deliver an effect. The
// state transition that produced the effect has already been applied.
type EffectError struct {
	Effect model.Effect
	Cause  error
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("deliver %T: %v", e.Effect, e.Cause)
}

func (e *EffectError) Unwrap() error {
	return e.Cause
}
