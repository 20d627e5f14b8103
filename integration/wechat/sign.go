package wechat

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Sign computes the JS-SDK signature: the lowercase hex SHA-1 of
// "jsapi_ticket={ticket}&noncestr={nonce}&timestamp={timestamp}&url={url}".
// The url must be the page URL without its fragment.
func Sign(ticket, nonce string, timestamp int64, url string) string {
	h := sha1.New()
	h.Write([]byte("jsapi_ticket=" + ticket + "&noncestr=" + nonce + "&timestamp=" + strconv.FormatInt(timestamp, 10) + "&url=" + url))
	return hex.EncodeToString(h.Sum(nil))
}
