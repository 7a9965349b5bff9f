package service

import (
	"context"
	"log/slog"
	"maps"

	"github.com/aussiebroadwan/uiauth/internal/uiauth/domain"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/metrics"
	"github.com/aussiebroadwan/uiauth/internal/uiauth/session"
	"github.com/aussiebroadwan/uiauth/pkg/slogx"
)

// AuthFlowService drives interactive, multi-stage authentication. Each call
// advances one session by at most one stage.
type AuthFlowService struct {
	Sessions *session.Store
	Stages   *StageRegistry
	Limiter  *AttemptLimiter   // optional
	Metrics  *metrics.Recorder // optional
}

// CheckAuth processes one client request against the acceptable flows.
//
// The optional "auth" object in body names the session and the stage being
// attempted. The rest of the body is remembered on the session so that
// later requests may omit it. The result is either a completed
// authentication carrying every recorded stage result, or a challenge
// describing what the client still has to do. Checker failures are
// returned as errors and record nothing for the stage.
func (s *AuthFlowService) CheckAuth(
	ctx context.Context,
	flows domain.FlowSet,
	body map[string]any,
	clientOrigin string,
) (domain.AuthResult, error) {
	clientParams := maps.Clone(body)
	if clientParams == nil {
		clientParams = make(map[string]any)
	}

	var auth map[string]any
	if raw, present := clientParams["auth"]; present {
		delete(clientParams, "auth")
		if raw != nil {
			m, ok := raw.(map[string]any)
			if !ok {
				return domain.AuthResult{}, ErrInvalidRequest.WithDescription("auth must be an object")
			}
			auth = m
		}
	}

	sessionID, err := optionalString(auth, "session")
	if err != nil {
		return domain.AuthResult{}, err
	}
	stageName, err := optionalString(auth, "type")
	if err != nil {
		return domain.AuthResult{}, err
	}

	var stage domain.StageType
	if stageName != "" {
		if stage, err = s.Stages.Resolve(stageName); err != nil {
			return domain.AuthResult{}, err
		}
	}

	sess, err := s.Sessions.GetOrCreate(sessionID)
	if err != nil {
		return domain.AuthResult{}, err
	}
	ctx = slogx.WithStage(slogx.WithSessionID(ctx, sess.ID), stage.String())
	l := slogx.FromContext(ctx)

	if len(clientParams) > 0 {
		if updated, ok := s.Sessions.Update(sess.ID, func(a *domain.AuthSession) {
			a.ClientParams = maps.Clone(clientParams)
		}); ok {
			sess = updated
		}
	} else if len(sess.ClientParams) > 0 {
		clientParams = maps.Clone(sess.ClientParams)
	}

	if auth == nil {
		return domain.AuthResult{
			Challenge: s.challenge(sess, flows),
			Params:    clientParams,
		}, nil
	}

	if stage != "" {
		if s.Limiter != nil && !s.Limiter.Allow(clientOrigin, stage) {
			s.Metrics.StageAttempt(stage.String(), metrics.OutcomeLimited)
			l.Warn("stage attempt rate limited", slog.String("origin", clientOrigin))
			return domain.AuthResult{}, ErrLimitExceeded
		}

		result, err := s.Stages.Check(ctx, stage, auth, clientOrigin)
		if err != nil {
			s.Metrics.StageAttempt(stage.String(), metrics.OutcomeFailure)
			l.Info("stage check failed", slog.Any("error", err))
			return domain.AuthResult{}, err
		}
		s.Metrics.StageAttempt(stage.String(), metrics.OutcomeSuccess)

		var ok bool
		sess, ok = s.Sessions.Update(sess.ID, func(a *domain.AuthSession) {
			a.Credentials[stage] = result
		})
		if !ok {
			// Another request completed or expired the session meanwhile.
			return domain.AuthResult{}, ErrInvalidRequest.WithDescription("Unknown session")
		}
		l.Debug("stage completed")
	}

	for _, flow := range flows {
		if flow.SatisfiedBy(sess.Credentials) {
			s.Sessions.Remove(sess.ID)
			s.Metrics.FlowCompleted()
			l.Info("interactive auth completed", slog.Any("stages", flow.Stages))
			return domain.AuthResult{
				Authenticated: true,
				Credentials:   maps.Clone(sess.Credentials),
				Params:        clientParams,
			}, nil
		}
	}

	return domain.AuthResult{
		Challenge: s.challenge(sess, flows),
		Params:    clientParams,
	}, nil
}

// AddOutOfBandAuth records a stage completed outside the normal request
// cycle, e.g. a user clicking an emailed validation link. It runs the
// stage checker but never completes the session.
func (s *AuthFlowService) AddOutOfBandAuth(
	ctx context.Context,
	stageName string,
	auth map[string]any,
	clientOrigin string,
) (bool, error) {
	stage, err := s.Stages.Resolve(stageName)
	if err != nil {
		return false, err
	}

	sessionID, err := optionalString(auth, "session")
	if err != nil {
		return false, err
	}
	if sessionID == "" {
		return false, ErrMissingParam.WithDescription("Missing parameter: session")
	}

	// An unknown or expired id yields a fresh session under a new id that no
	// client holds. The credential is recorded there, reported as accepted,
	// and expires with the orphan session.
	sess, err := s.Sessions.GetOrCreate(sessionID)
	if err != nil {
		return false, err
	}
	ctx = slogx.WithStage(slogx.WithSessionID(ctx, sess.ID), stage.String())

	result, err := s.Stages.Check(ctx, stage, auth, clientOrigin)
	if err != nil {
		s.Metrics.StageAttempt(stage.String(), metrics.OutcomeFailure)
		return false, err
	}
	s.Metrics.StageAttempt(stage.String(), metrics.OutcomeSuccess)

	if _, ok := s.Sessions.Update(sess.ID, func(a *domain.AuthSession) {
		a.Credentials[stage] = result
	}); !ok {
		return false, ErrInvalidRequest.WithDescription("Unknown session")
	}

	slogx.FromContext(ctx).Info("out-of-band stage recorded")
	return true, nil
}

func (s *AuthFlowService) challenge(sess domain.AuthSession, flows domain.FlowSet) *domain.Challenge {
	return &domain.Challenge{
		Session:   sess.ID,
		Flows:     flows,
		Params:    s.Stages.Params(flows),
		Completed: sess.CompletedStages(),
	}
}

// optionalString reads an optional string field; a present non-string value
// is a malformed request.
func optionalString(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", ErrInvalidRequest.WithDescription("%s must be a string", key)
	}
	return s, nil
}
