package domain

import (
	"maps"
	"slices"
	"time"
)

// AuthSession accumulates stage results for one multi-step authentication.
type AuthSession struct {
	ID           string
	Credentials  map[StageType]any
	ClientParams map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a copy whose maps can be mutated without affecting s.
// Stage results themselves are shared.
func (s AuthSession) Clone() AuthSession {
	out := s
	out.Credentials = maps.Clone(s.Credentials)
	if out.Credentials == nil {
		out.Credentials = make(map[StageType]any)
	}
	out.ClientParams = maps.Clone(s.ClientParams)
	return out
}

// CompletedStages lists the stages with a recorded result, sorted by name.
func (s AuthSession) CompletedStages() []StageType {
	out := slices.Collect(maps.Keys(s.Credentials))
	slices.Sort(out)
	return out
}
