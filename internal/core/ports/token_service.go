package ports

// TokenService issues and validates the signed, expiring credential used
// in verification links. Tokens are stateless: validity is determined by
// signature and expiry alone, never by lookup.
type TokenService interface {
	Issue(subject string) (string, error)
	Validate(token string) (subject string, err error)
}
