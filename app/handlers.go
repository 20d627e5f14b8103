package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrymomot/wxauth/app/receipt"
	"github.com/dmitrymomot/wxauth/app/user"
	"github.com/dmitrymomot/wxauth/core/authflow"
	"github.com/dmitrymomot/wxauth/core/cache"
	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/kv"
	"github.com/dmitrymomot/wxauth/core/logger"
	"github.com/dmitrymomot/wxauth/core/response"
	"github.com/dmitrymomot/wxauth/core/router"
	"github.com/dmitrymomot/wxauth/middleware"
	"github.com/dmitrymomot/wxauth/pkg/qrcode"
	"github.com/dmitrymomot/wxauth/pkg/queryparams"
	"github.com/dmitrymomot/wxauth/pkg/useragent"
)

var featureName = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidFeature reports whether name can be used as a cache feature filter.
func ValidFeature(name string) bool { return featureName.MatchString(name) }

// PageData is what a gated page renders.
type PageData struct {
	Path           string `json:"path"`
	UserID         string `json:"userId,omitempty"`
	Nickname       string `json:"nickname,omitempty"`
	AvatarURL      string `json:"avatar,omitempty"`
	IsWeChat       bool   `json:"isWx"`
	IsMobile       bool   `json:"isMobile"`
	WeChatLoginURL string `json:"wechatLoginUrl"`
}

func (a *App) page(ctx *router.Context) handler.Response {
	req := authflow.RequestFromHTTP(ctx.Request())
	ua, _ := useragent.Parse(req.UserAgent)

	data := PageData{
		Path:           req.OriginalURL,
		IsWeChat:       ua.IsWeChat(),
		IsMobile:       ua.IsMobile(),
		WeChatLoginURL: a.wechat.QRConnectURL(a.callbackURL(req, req.CurrentURL()), a.cfg.Auth.State),
	}
	if sess, ok := middleware.GetSession[authflow.Identity](ctx); ok && sess.IsAuthenticated() {
		data.UserID = sess.Data.UserID
		data.Nickname = sess.Data.DisplayName
		data.AvatarURL = sess.Data.AvatarURL
	}
	return response.WithCache(response.JSON(data), 0)
}

func (a *App) errorPage(*router.Context) handler.Response {
	return response.StringWithStatus("authorization failed", http.StatusUnauthorized)
}

// wxConfig signs the JS-SDK config for the page named by Referer, falling
// back to the request URL.
func (a *App) wxConfig(ctx *router.Context) handler.Response {
	pageURL := ctx.Request().Referer()
	if pageURL == "" {
		pageURL = authflow.RequestFromHTTP(ctx.Request()).CurrentURL()
	}

	cfg, err := a.jssdk.Config(ctx, pageURL)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to sign wx config", logger.Error(err))
		return apiError(err)
	}
	return response.WithCache(response.JSON(cfg), 0)
}

// loginQRCode renders the website login link as a PNG. Images are cached
// per login link.
func (a *App) loginQRCode(ctx *router.Context) handler.Response {
	r := ctx.Request()
	target := r.URL.Query().Get("redirect")
	if target == "" {
		target = r.Referer()
	}
	if target == "" {
		target = "/"
	}

	loginURL := a.wechat.QRConnectURL(a.callbackURL(authflow.RequestFromHTTP(r), target), a.cfg.Auth.State)
	key, err := cache.Key(FeatureQRCode, map[string]string{"login_url": loginURL})
	if err != nil {
		return apiError(err)
	}

	png, err := cache.GetOrCompute(ctx, a.cache, key, a.cfg.Auth.QRCodeTTL, func(context.Context) ([]byte, error) {
		return qrcode.Generate(loginURL, a.cfg.Auth.QRCodeSize)
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to render login qrcode", logger.Error(err), logger.CacheKey(key))
		return apiError(err)
	}
	return response.Image(png, "image/png", int(a.cfg.Auth.QRCodeTTL.Seconds()))
}

// wxLoginCallback completes a QR code login. The browser is sent to the
// redirectUrl it came from when that target is trusted.
func (a *App) wxLoginCallback(ctx *router.Context) handler.Response {
	req := authflow.RequestFromHTTP(ctx.Request())
	if req.Code == "" {
		return response.Error(response.ErrBadRequest.WithMessage("missing code"))
	}

	sess, ok := middleware.GetSession[authflow.Identity](ctx)
	if !ok {
		return response.Error(response.ErrUnauthorized)
	}
	sess, ident, err := a.flow.Exchange(ctx, req.Code, sess)
	if err != nil {
		a.logger.WarnContext(ctx, "qrcode login failed", logger.Error(err))
		return a.authFailed()
	}
	write, err := middleware.LoginCookies(a.cookies, a.tokens, ident)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to issue login token", logger.Error(err))
		return apiError(err)
	}
	middleware.SetSession(ctx, sess)

	a.logger.InfoContext(ctx, "qrcode login completed", logger.UserID(ident.UserID))
	// Missing or untrusted targets land on the site root.
	req.OriginalURL = "/"
	return response.Before(response.Redirect(a.flow.CompletionURL(req)), write)
}

// cacheStats reports the features in the comma separated feature query, or
// every known feature.
func (a *App) cacheStats(ctx *router.Context) handler.Response {
	features, err := parseFeatures(ctx.Request().URL.Query().Get("feature"))
	if err != nil {
		return response.Error(err)
	}

	stats := make([]cache.Stats, 0, len(features))
	for _, f := range features {
		st, err := a.cache.Stats(ctx, f)
		if err != nil {
			return apiError(err)
		}
		stats = append(stats, st)
	}
	return response.WithCache(response.JSON(map[string]any{"features": stats}), 0)
}

// clearCache purges the features in the feature query, or every known
// feature.
func (a *App) clearCache(ctx *router.Context) handler.Response {
	features, err := parseFeatures(ctx.Request().URL.Query().Get("feature"))
	if err != nil {
		return response.Error(err)
	}

	deleted := make(map[string]int, len(features))
	total := 0
	for _, f := range features {
		n, err := a.cache.Purge(ctx, f)
		if err != nil {
			return apiError(err)
		}
		deleted[f] = n
		total += n
	}
	a.logger.InfoContext(ctx, "cache cleared", slog.Int("deleted", total), slog.Any("features", features))
	return response.JSON(map[string]any{"deleted": total, "features": deleted})
}

func parseFeatures(raw string) ([]string, error) {
	if raw == "" {
		return Features, nil
	}
	var features []string
	for f := range strings.SplitSeq(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !ValidFeature(f) {
			return nil, response.ErrBadRequest.WithMessage("invalid feature " + strconv.Quote(f))
		}
		features = append(features, f)
	}
	return features, nil
}

// createReceipt renders the posted receipt, filling missing fields with
// defaults. An empty body renders the default receipt.
func (a *App) createReceipt(ctx *router.Context) handler.Response {
	rc := receipt.Default()
	// Posted items replace the default rows instead of merging into them.
	defaults := rc.Items
	rc.Items = nil
	if err := decodeJSON(ctx.Request(), &rc); err != nil {
		return response.Error(err)
	}
	if rc.Items == nil {
		rc.Items = defaults
	}

	art, err := a.receipts.Generate(ctx, rc)
	if errors.Is(err, receipt.ErrInvalid) {
		return response.Error(response.ErrBadRequest.WithMessage(err.Error()))
	}
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to generate receipt", logger.Error(err))
		return apiError(err)
	}
	return response.JSON(map[string]any{
		"id":   art.ID,
		"size": art.Size,
		"url":  "/api/receipt/file/" + art.ID,
	})
}

func (a *App) receiptFile(ctx *router.Context) handler.Response {
	svg, err := a.receipts.Load(ctx, ctx.Param("id"))
	if errors.Is(err, receipt.ErrNotFound) {
		return response.Error(response.ErrNotFound)
	}
	if err != nil {
		return apiError(err)
	}
	return response.Before(
		response.Image(svg, receipt.ContentType, int(a.receipts.TTL().Seconds())),
		func(w http.ResponseWriter) error {
			w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			return nil
		},
	)
}

// maxBodySize caps JSON request bodies.
const maxBodySize = 1 << 20

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt != "application/json" {
		return response.ErrUnsupportedMediaType
	}

	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return response.ErrRequestEntityTooLarge
		}
		return response.ErrBadRequest.WithMessage("invalid JSON body").WithError(err)
	}
	return nil
}

func (a *App) me(ctx *router.Context) handler.Response {
	claims, ok := middleware.GetJWTClaims(ctx)
	if !ok {
		return response.Error(response.ErrUnauthorized)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return response.Error(response.ErrUnauthorized)
	}

	u, err := a.users.GetByID(ctx, id)
	if errors.Is(err, user.ErrNotFound) {
		return response.Error(response.ErrNotFound)
	}
	if err != nil {
		return apiError(err)
	}
	return response.WithCache(response.JSON(u), 0)
}

func (a *App) authFailed() handler.Response {
	if a.cfg.Auth.ErrorPage != "" {
		return response.Redirect(a.cfg.Auth.ErrorPage)
	}
	return response.Error(response.ErrUnauthorized)
}

// callbackURL is the QR code login callback on the current host, carrying
// target as redirectUrl.
func (a *App) callbackURL(req authflow.Request, target string) string {
	return queryparams.Fill(req.Scheme+"://"+req.Host+callbackPath, map[string]string{
		authflow.ParamRedirectURL: target,
	})
}

// apiError maps backend outages to 503 and leaves the rest to the router's
// error handler.
func apiError(err error) handler.Response {
	if errors.Is(err, kv.ErrStoreFailure) || errors.Is(err, cache.ErrLockTimeout) {
		return response.Error(response.ErrServiceUnavailable.WithError(err))
	}
	return response.Error(err)
}
