package domain

import "errors"

// Error taxonomy shared by all modules. Module errors wrap one of these so
// transport layers can map them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicatePending    = errors.New("collaboration request already pending")
	ErrAlreadyCollaborator = errors.New("already a collaborator")
	ErrAlreadyAdmin        = errors.New("organization admin cannot request collaboration")
	ErrConflict            = errors.New("conflict")
)
