package service

import (
	"context"
	"maps"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
)

// StageChecker validates the client-supplied payload for one stage and
// returns the value to record for it on success.
type StageChecker interface {
	Check(ctx context.Context, input map[string]any, clientOrigin string) (any, error)
}

// ParamsProvider is implemented by checkers that publish parameters the
// client needs before attempting the stage.
type ParamsProvider interface {
	PublicParams() map[string]any
}

// StageCheckerFunc adapts a function to StageChecker.
type StageCheckerFunc func(ctx context.Context, input map[string]any, clientOrigin string) (any, error)

func (f StageCheckerFunc) Check(ctx context.Context, input map[string]any, clientOrigin string) (any, error) {
	return f(ctx, input, clientOrigin)
}

// StageRegistry maps stage types to checkers. It is built once at startup
// and read-only afterwards.
type StageRegistry struct {
	checkers map[domain.StageType]StageChecker
}

func NewStageRegistry(checkers map[domain.StageType]StageChecker) *StageRegistry {
	return &StageRegistry{checkers: maps.Clone(checkers)}
}

// Has reports whether a checker is registered for stage.
func (r *StageRegistry) Has(stage domain.StageType) bool {
	_, ok := r.checkers[stage]
	return ok
}

// Resolve parses a client-supplied stage name. Unknown names and stages
// without a checker yield ErrUnrecognizedStage.
func (r *StageRegistry) Resolve(name string) (domain.StageType, error) {
	stage, ok := domain.ParseStageType(name)
	if !ok || !r.Has(stage) {
		return "", ErrUnrecognizedStage
	}
	return stage, nil
}

func (r *StageRegistry) Check(ctx context.Context, stage domain.StageType, input map[string]any, clientOrigin string) (any, error) {
	checker, ok := r.checkers[stage]
	if !ok {
		return nil, ErrUnrecognizedStage
	}
	return checker.Check(ctx, input, clientOrigin)
}

// Params collects the public parameters of every stage used by flows.
func (r *StageRegistry) Params(flows domain.FlowSet) map[string]any {
	params := make(map[string]any)
	for stage, checker := range r.checkers {
		p, ok := checker.(ParamsProvider)
		if !ok || !flows.Contains(stage) {
			continue
		}
		params[stage.String()] = p.PublicParams()
	}
	return params
}

// DummyChecker accepts unconditionally. It lets clients complete a flow
// that needs no credentials while still going through the session machinery.
type DummyChecker struct{}

func (DummyChecker) Check(context.Context, map[string]any, string) (any, error) {
	return true, nil
}

func stringParam(input map[string]any, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok
}
