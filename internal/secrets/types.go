package secrets

import "errors"

// Record is one label/secret pair. Its identity for editing is its index in the store.
type Record struct {
	Label  string `json:"label"`
	Secret string `json:"secret"`
}

var (
	// ErrIndexOutOfRange is returned for an index outside 0..Len()-1
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyField is returned in strict mode for an empty label or secret
	ErrEmptyField = errors.New("label and secret must not be empty")
	// ErrPersistence wraps durable-store read and write failures
	ErrPersistence = errors.New("persistence failure")
)
