package oauth2

// RefreshRequest holds the parameters of a refresh_token grant.
type RefreshRequest struct {
	// RefreshToken is required.
	RefreshToken string

	// ClientID identifies the public client that obtained the token.
	ClientID string

	// Scope, when set, asks for the same scopes that were originally granted.
	Scope string
}

// Form returns the request body fields in wire order.
func (r RefreshRequest) Form() []FormField {
	return []FormField{
		{Name: "grant_type", Value: string(RefreshTokenGrant)},
		{Name: "refresh_token", Value: r.RefreshToken},
		{Name: "client_id", Value: r.ClientID},
		{Name: "scope", Value: r.Scope},
	}
}

// Encode returns the form-encoded body.
func (r RefreshRequest) Encode() string {
	return EncodeForm(r.Form())
}
