package service

import (
	"context"
	"fmt"
	"maps"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"k8s.io/utils/clock"
)

// PasswordChecker implements m.login.password.
type PasswordChecker struct {
	Auth *PasswordAuthenticator
}

func (c *PasswordChecker) Check(ctx context.Context, input map[string]any, _ string) (any, error) {
	user, ok := stringParam(input, "user")
	if !ok {
		return nil, ErrMissingParam.WithDescription("Missing parameter: user")
	}
	password, ok := stringParam(input, "password")
	if !ok {
		return nil, ErrMissingParam.WithDescription("Missing parameter: password")
	}
	return c.Auth.CheckPassword(ctx, c.Auth.QualifyUserID(user), password)
}

// CaptchaVerifier checks a CAPTCHA response with the provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

// CaptchaChecker implements m.login.recaptcha.
type CaptchaChecker struct {
	Verifier  CaptchaVerifier
	PublicKey string
}

func (c *CaptchaChecker) Check(ctx context.Context, input map[string]any, clientOrigin string) (any, error) {
	response, ok := stringParam(input, "response")
	if !ok {
		return nil, ErrCaptchaNeeded
	}

	passed, err := c.Verifier.Verify(ctx, response, clientOrigin)
	if err != nil {
		return nil, fmt.Errorf("verify captcha: %w", err)
	}
	if !passed {
		return nil, ErrUnauthorized.WithDescription("Captcha verification failed")
	}
	return true, nil
}

func (c *CaptchaChecker) PublicParams() map[string]any {
	return map[string]any{"public_key": c.PublicKey}
}

// ThreepidResolver exchanges identity-server credentials for a validated
// third-party identifier. A nil map means the credentials did not resolve.
type ThreepidResolver interface {
	ThreepidFromCreds(ctx context.Context, creds map[string]any) (map[string]any, error)
}

// EmailIdentityChecker implements m.login.email.identity.
type EmailIdentityChecker struct {
	Resolver ThreepidResolver
}

func (c *EmailIdentityChecker) Check(ctx context.Context, input map[string]any, _ string) (any, error) {
	creds, ok := input["threepid_creds"].(map[string]any)
	if !ok {
		return nil, ErrMissingParam.WithDescription("Missing parameter: threepid_creds")
	}

	threepid, err := c.Resolver.ThreepidFromCreds(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("resolve threepid: %w", err)
	}
	if threepid == nil {
		return nil, ErrUnauthorized.WithDescription("Unable to get validated threepid")
	}

	out := maps.Clone(threepid)
	out["threepid_creds"] = creds
	return out, nil
}

// TOTPChecker implements m.login.totp: a six digit code from the user's
// enrolled authenticator app.
type TOTPChecker struct {
	Auth  *PasswordAuthenticator
	Clock clock.PassiveClock
}

func (c *TOTPChecker) Check(ctx context.Context, input map[string]any, _ string) (any, error) {
	user, ok := stringParam(input, "user")
	if !ok {
		return nil, ErrMissingParam.WithDescription("Missing parameter: user")
	}
	code, ok := stringParam(input, "code")
	if !ok {
		return nil, ErrMissingParam.WithDescription("Missing parameter: code")
	}

	u, err := c.Auth.ResolveUser(ctx, c.Auth.QualifyUserID(user))
	if err != nil {
		return nil, err
	}
	if u.TOTPSecret == nil || *u.TOTPSecret == "" {
		return nil, ErrUnauthorized.WithDescription("TOTP is not enrolled")
	}

	valid, err := totp.ValidateCustom(code, *u.TOTPSecret, c.Clock.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return nil, ErrUnauthorized.WithDescription("Invalid TOTP code")
	}
	return u.ID, nil
}
