package models

// Credential is the token material handed to a client on registration or
// login. The access token is an opaque bearer value returned exactly
// once; only its hash is kept server side.
type Credential struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// NewCredential wraps a freshly issued bearer token.
func NewCredential(token string) *Credential {
	return &Credential{
		AccessToken: token,
		TokenType:   "Bearer",
	}
}
