package gateway

import "net/url"

// SignedReturnQuery signs params the way the gateway signs its return redirect.
func SignedReturnQuery(hashSecret string, params url.Values) url.Values {
	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set(paramSecureHash, sign(hashSecret, params))
	return signed
}
