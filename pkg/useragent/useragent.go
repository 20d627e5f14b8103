// Package useragent recognises the in-app browsers of Chinese messaging and
// payment apps from the User-Agent header.
package useragent

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
)

var ErrEmptyUserAgent = errors.New("useragent: empty user agent")

// Client identifies the embedding app.
type Client string

const (
	ClientWeChat Client = "wechat"
	ClientWeCom  Client = "wecom"
	ClientQQ     Client = "qq"
	ClientAlipay Client = "alipay"
	ClientOther  Client = "other"
)

var (
	wechatVersion = regexp.MustCompile(`(?i)micromessenger/([0-9.]+)`)
	mobileMarkers = []string{"mobile", "android", "iphone", "ipad", "harmonyos"}
)

// UserAgent is a parsed header.
type UserAgent struct {
	raw     string
	client  Client
	version string
	mobile  bool
}

// Parse classifies ua.
func Parse(ua string) (UserAgent, error) {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return UserAgent{client: ClientOther}, ErrEmptyUserAgent
	}
	lower := strings.ToLower(ua)

	u := UserAgent{raw: ua, client: ClientOther}
	switch {
	case strings.Contains(lower, "wxwork"):
		u.client = ClientWeCom
	case strings.Contains(lower, "micromessenger"):
		u.client = ClientWeChat
	case strings.Contains(lower, "qq/"):
		u.client = ClientQQ
	case strings.Contains(lower, "alipayclient"):
		u.client = ClientAlipay
	}
	if m := wechatVersion.FindStringSubmatch(ua); m != nil {
		u.version = m[1]
	}
	for _, marker := range mobileMarkers {
		if strings.Contains(lower, marker) {
			u.mobile = true
			break
		}
	}
	return u, nil
}

func (u UserAgent) String() string { return u.raw }
func (u UserAgent) Client() Client { return u.client }
func (u UserAgent) IsMobile() bool { return u.mobile }

// WeChatVersion is the MicroMessenger version, or "".
func (u UserAgent) WeChatVersion() string { return u.version }

// IsWeChat reports a WeChat-family browser. WeCom embeds the same engine
// and accepts the same OAuth flow.
func (u UserAgent) IsWeChat() bool {
	return u.client == ClientWeChat || u.client == ClientWeCom
}

// IsWeChat reports whether ua belongs to a WeChat-family browser.
func IsWeChat(ua string) bool {
	u, err := Parse(ua)
	return err == nil && u.IsWeChat()
}

// IsWeChatRequest is IsWeChat on r's User-Agent header.
func IsWeChatRequest(r *http.Request) bool {
	return IsWeChat(r.UserAgent())
}
