package service

import "context"

// TextGenerator produces a completion for a system instruction and a user prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}
