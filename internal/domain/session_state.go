package domain

type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticating  SessionState = "authenticating"
	SessionOnboarding      SessionState = "onboarding"
	SessionReady           SessionState = "ready"
	SessionQuarantined     SessionState = "quarantined"
)

func (s SessionState) Terminal() bool {
	return s == SessionQuarantined
}
