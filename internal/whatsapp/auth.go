package whatsapp

// AuthGateway maps an inbound api key to a registry entry and enforces the
// readiness precondition. Every dispatch operation passes through here; no
// send path may bypass it.
type AuthGateway struct {
	reg *Registry
}

func NewAuthGateway(reg *Registry) *AuthGateway {
	return &AuthGateway{reg: reg}
}

// Authenticate resolves the api key to a connected session. It returns
// ErrMissingAPIKey, ErrInvalidAPIKey, or a NotReadyError carrying the
// current status when the instance exists but is not connected.
func (g *AuthGateway) Authenticate(apiKey string) (*Session, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	sess := g.reg.GetByAPIKey(apiKey)
	if sess == nil {
		return nil, ErrInvalidAPIKey
	}
	if st := sess.Status(); st != StatusConnected {
		return nil, &NotReadyError{Status: st}
	}
	return sess, nil
}
