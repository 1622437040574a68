package orchestrator

import (
	"strings"

	"github.com/google/uuid"
)

// NewRunID returns a unique run identifier.
// Format: run-{uuid}
// Example: run-0b6f1c3e-8d2a-4f57-9a51-2f0c4e7d9b13
func NewRunID() string {
	return "run-" + uuid.NewString()
}

// IsRunID reports whether id has the shape produced by NewRunID.
func IsRunID(id string) bool {
	rest, ok := strings.CutPrefix(id, "run-")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
