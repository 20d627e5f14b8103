package wechat

import (
	"net/url"

	"github.com/dmitrymomot/wxauth/pkg/queryparams"
)

// DefaultState is sent when the caller has no state of its own.
const DefaultState = "STATE"

// callbackParams are stripped from redirect URIs so a completed round trip
// does not leak into the next one.
var callbackParams = []string{"code", "state", "authDataKey", "client"}

// AuthorizeURL builds the in-app authorization redirect for redirectURI.
func (c *Client) AuthorizeURL(redirectURI string, scope Scope, state string) string {
	return c.openURL("/connect/oauth2/authorize", redirectURI, scope, state)
}

// QRConnectURL builds the website QR-login URL.
func (c *Client) QRConnectURL(redirectURI, state string) string {
	return c.openURL("/connect/qrconnect", redirectURI, ScopeLogin, state)
}

func (c *Client) openURL(path, redirectURI string, scope Scope, state string) string {
	if state == "" {
		state = DefaultState
	}
	if scope == "" {
		scope = ScopeUserInfo
	}
	q := url.Values{
		"appid":         {c.appID},
		"redirect_uri":  {queryparams.Without(redirectURI, callbackParams...)},
		"response_type": {"code"},
		"scope":         {string(scope)},
		"state":         {state},
	}
	return c.openBase + path + "?" + q.Encode() + "#wechat_redirect"
}
