package domain

// StageType names an interactive authentication stage.
type StageType string

const (
	StagePassword      StageType = "m.login.password"
	StageRecaptcha     StageType = "m.login.recaptcha"
	StageEmailIdentity StageType = "m.login.email.identity"
	StageDummy         StageType = "m.login.dummy"
	StageTOTP          StageType = "m.login.totp"
)

var knownStages = map[StageType]struct{}{
	StagePassword:      {},
	StageRecaptcha:     {},
	StageEmailIdentity: {},
	StageDummy:         {},
	StageTOTP:          {},
}

// ParseStageType reports whether s names a known stage.
func ParseStageType(s string) (StageType, bool) {
	st := StageType(s)
	_, ok := knownStages[st]
	return st, ok
}

func (s StageType) String() string { return string(s) }
