package session

import "golang.org/x/oauth2"

// storeSource reads the store on every call so no copy of the token
// outlives the store.
type storeSource struct {
	store TokenStore
}

// TokenSource adapts a TokenStore to an oauth2.TokenSource producing Bearer
// tokens. Token returns ErrNoToken when the store is empty.
func TokenSource(store TokenStore) oauth2.TokenSource {
	return storeSource{store: store}
}

func (s storeSource) Token() (*oauth2.Token, error) {
	tok, err := s.store.Get()
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}
