package llm

import (
	"context"

	"StockCast/internal/domain/errs"
	domsvc "StockCast/internal/domain/service"
)

// Unconfigured stands in when no API key is set. Every call fails as unavailable.
type Unconfigured struct {
	Provider string
}

var _ domsvc.TextGenerator = Unconfigured{}

func (u Unconfigured) Name() string { return u.Provider + " (unconfigured)" }

func (u Unconfigured) Generate(context.Context, string, string) (string, error) {
	return "", errs.Unavailable("llm.Generate", "%s api key is not configured", u.Provider)
}
