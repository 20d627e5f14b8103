package wechat

import "time"

// Scope is an OAuth scope understood by the WeChat authorize endpoints.
type Scope string

const (
	// ScopeBase authorizes silently and yields only the openid.
	ScopeBase Scope = "snsapi_base"
	// ScopeUserInfo prompts the user and allows profile reads.
	ScopeUserInfo Scope = "snsapi_userinfo"
	// ScopeLogin is the website QR login scope.
	ScopeLogin Scope = "snsapi_login"
)

// AccessToken is the result of a code exchange or refresh.
type AccessToken struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	OpenID       string `json:"openid"`
	Scope        Scope  `json:"scope"`
	UnionID      string `json:"unionid,omitempty"`
}

// UserInfo is the profile returned by sns/userinfo. Raw keeps the full
// upstream document.
type UserInfo struct {
	OpenID     string         `json:"openid"`
	Nickname   string         `json:"nickname"`
	Sex        int            `json:"sex"`
	Province   string         `json:"province"`
	City       string         `json:"city"`
	Country    string         `json:"country"`
	HeadImgURL string         `json:"headimgurl"`
	Privilege  []string       `json:"privilege"`
	UnionID    string         `json:"unionid,omitempty"`
	Raw        map[string]any `json:"-"`
}

// Credential is an app-level token or ticket with its lifetime.
type Credential struct {
	Value     string        `json:"value"`
	ExpiresIn time.Duration `json:"expires_in"`
}
