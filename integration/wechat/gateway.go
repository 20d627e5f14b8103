package wechat

import (
	"context"

	"github.com/dmitrymomot/wxauth/core/authflow"
)

// Gateway adapts Client to the authorization flow.
type Gateway struct {
	client *Client
	lang   string
}

var _ authflow.Gateway = (*Gateway)(nil)

// NewGateway returns a Gateway. An empty lang uses the client default.
func NewGateway(client *Client, lang string) *Gateway {
	return &Gateway{client: client, lang: lang}
}

// AuthorizeURL uses snsapi_base for silent routes and snsapi_userinfo otherwise.
func (g *Gateway) AuthorizeURL(redirectURI string, silent bool, state string) string {
	scope := ScopeUserInfo
	if silent {
		scope = ScopeBase
	}
	return g.client.AuthorizeURL(redirectURI, scope, state)
}

func (g *Gateway) Exchange(ctx context.Context, code string) (authflow.Token, error) {
	tok, err := g.client.ExchangeCode(ctx, code)
	if err != nil {
		return authflow.Token{}, err
	}
	return authflow.Token{
		AccessToken: tok.AccessToken,
		OpenID:      tok.OpenID,
		Scope:       string(tok.Scope),
	}, nil
}

// Profile fetches the user profile. Tokens granted with snsapi_base cannot
// read it, so only the openid is returned for them.
func (g *Gateway) Profile(ctx context.Context, token authflow.Token) (authflow.Profile, error) {
	if Scope(token.Scope) == ScopeBase {
		return authflow.Profile{
			ProviderID: token.OpenID,
			Raw:        map[string]any{"openid": token.OpenID},
		}, nil
	}
	info, err := g.client.UserInfo(ctx, token.AccessToken, token.OpenID, g.lang)
	if err != nil {
		return authflow.Profile{}, err
	}
	return authflow.Profile{
		ProviderID: info.OpenID,
		UnionID:    info.UnionID,
		Nickname:   info.Nickname,
		AvatarURL:  info.HeadImgURL,
		Raw:        info.Raw,
	}, nil
}
