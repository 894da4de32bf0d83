package storage

import (
	"context"
	"fmt"
	"strings"
)

// validateContext ensures a usable context was supplied.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	return ctx.Err()
}

// validateString ensures a required string argument is non-blank.
func validateString(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
