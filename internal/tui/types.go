package tui

import (
	"context"
	"errors"

	"otpdeck/internal/agent"
	"otpdeck/internal/otp"
)

// Mode is the current input state of the code list
type Mode string

const (
	// ModeList navigates the code list
	ModeList Mode = "list"
	// ModeAddLabel edits the label field of the add panel
	ModeAddLabel Mode = "add_label"
	// ModeAddSecret edits the secret field of the add panel
	ModeAddSecret Mode = "add_secret"
	// ModeRename edits the selected record's label
	ModeRename Mode = "rename"
	// ModeConfirmDelete waits for y to delete the selected record
	ModeConfirmDelete Mode = "confirm_delete"
)

// Controller receives user intents; *agent.Agent implements it
type Controller interface {
	Add(ctx context.Context, label, secret string) (bool, error)
	Rename(ctx context.Context, index int, label string) (bool, error)
	Delete(ctx context.Context, index int) error
	Move(ctx context.Context, from, to int) error
	TogglePanel(ctx context.Context) (bool, error)
	Code(ctx context.Context, index int) (string, error)
	Frames() <-chan agent.Frame
}

type frameMsg agent.Frame

type framesClosedMsg struct{}

type opResultMsg struct {
	op       string
	err      error
	selectTo int
}

type panelMsg struct {
	collapsed bool
	err       error
}

type copyResultMsg struct {
	index int
	err   error
}

type clearCopiedMsg struct {
	index int
}

// errorMarker names a per-record failure for display
func errorMarker(err error) string {
	switch {
	case errors.Is(err, otp.ErrEmptyKey):
		return "EmptyKey"
	case errors.Is(err, otp.ErrCryptoUnavailable):
		return "CryptoUnavailable"
	case errors.Is(err, otp.ErrInvalidSecretFormat):
		return "InvalidSecretFormat"
	case errors.Is(err, otp.ErrInvalidTime):
		return "InvalidTime"
	default:
		return "Error"
	}
}
