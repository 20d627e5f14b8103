package wechat

import "time"

// Config holds the official-account credentials and endpoints.
type Config struct {
	AppID       string        `env:"WECHAT_APP_ID,required"`
	AppSecret   string        `env:"WECHAT_APP_SECRET,required"`
	APIBaseURL  string        `env:"WECHAT_API_BASE_URL" envDefault:"https://api.weixin.qq.com"`
	OpenBaseURL string        `env:"WECHAT_OPEN_BASE_URL" envDefault:"https://open.weixin.qq.com"`
	Timeout     time.Duration `env:"WECHAT_HTTP_TIMEOUT" envDefault:"5s"`
	Lang        string        `env:"WECHAT_LANG" envDefault:"zh_CN"`
	TicketTTL   time.Duration `env:"WECHAT_TICKET_TTL" envDefault:"7200s"`
}
