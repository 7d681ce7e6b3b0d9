package phase

import (
	"context"
	"log/slog"

	"agora/internal/flags"
	dErrors "agora/pkg/domain-errors"
	audit "agora/pkg/platform/audit"
	"agora/pkg/requestcontext"
)

// FlagService is the slice of the flag service the controller needs.
type FlagService interface {
	SetPhase(ctx context.Context, enabled, disabled []flags.Name) error
	Enabled(ctx context.Context, name flags.Name) bool
}

// Controller applies phase transitions. It refuses to apply anything when
// the stored catalog is missing flags (SetPhase's pre-check), so the
// platform can never end up with a half-applied phase.
type Controller struct {
	flags     FlagService
	logger    *slog.Logger
	publisher audit.Publisher
	metrics   *Metrics
}

// Option configures the Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(c *Controller) { c.publisher = publisher }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func NewController(flagService FlagService, opts ...Option) *Controller {
	c := &Controller{flags: flagService}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply transitions the platform to the given phase. Idempotent: applying
// the active phase again rewrites the same flag values.
func (c *Controller) Apply(ctx context.Context, p Phase) error {
	enabled, disabled := Flagset(p)

	// Entering registration, the supporting window tracks the support-round
	// setting: a round without supporting keeps the flag off even though
	// the phase would otherwise open it.
	if p == Registration && !c.flags.Enabled(ctx, flags.GlobalSupportRound) {
		enabled, disabled = moveName(enabled, disabled, flags.EnableCandidateSupporting)
	}

	if err := c.flags.SetPhase(ctx, enabled, disabled); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfiguration) {
			c.emit(ctx, audit.ActionPhaseRefused, p, err.Error())
		}
		return err
	}

	if c.logger != nil {
		c.logger.Info("phase applied", "phase", string(p),
			"enabled", len(enabled), "disabled", len(disabled))
	}
	if c.metrics != nil {
		c.metrics.IncrementPhaseApplied(string(p))
	}
	c.emit(ctx, audit.ActionPhaseApplied, p, "")
	return nil
}

func (c *Controller) emit(ctx context.Context, action audit.Action, p Phase, reason string) {
	if c.publisher == nil {
		return
	}
	err := c.publisher.Emit(ctx, audit.Event{
		Category:  action.Category(),
		Action:    action,
		Timestamp: requestcontext.Now(ctx),
		ActorID:   requestcontext.ActorID(ctx),
		Subject:   string(p),
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil && c.logger != nil {
		c.logger.Warn("phase audit emit failed", "phase", string(p), "error", err)
	}
}

// moveName moves one flag from the enabled set to the disabled set.
func moveName(enabled, disabled []flags.Name, name flags.Name) ([]flags.Name, []flags.Name) {
	out := enabled[:0]
	for _, n := range enabled {
		if n != name {
			out = append(out, n)
		}
	}
	return out, append(disabled, name)
}
