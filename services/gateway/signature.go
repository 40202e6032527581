package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
)

const (
	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
	paramPrefix         = "vnp_"
)

// sign computes the hex hmac-sha512 over the sorted, query-escaped protocol parameters.
func sign(secret string, params url.Values) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(signedParams(params).Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret string, params url.Values) bool {
	received := strings.ToLower(params.Get(paramSecureHash))
	if received == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(received), []byte(sign(secret, params)))
}

func signedParams(params url.Values) url.Values {
	filtered := url.Values{}
	for key, values := range params {
		if !strings.HasPrefix(key, paramPrefix) || key == paramSecureHash || key == paramSecureHashType {
			continue
		}
		if len(values) == 0 || values[0] == "" {
			continue
		}
		filtered.Set(key, values[0])
	}
	return filtered
}
