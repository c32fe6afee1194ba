package lastfm

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
)

// unsignedParams are sent with a request but never part of the signature.
var unsignedParams = map[string]bool{
	"format":   true,
	"callback": true,
	"api_sig":  true,
}

// calculateSignature generates an MD5 signature for Last.fm API requests.
//
// The signature is calculated by:
// 1. Sorting parameter keys alphabetically
// 2. Concatenating key+value pairs (e.g., "keyAvalueAkeyBvalueB")
// 3. Appending the API secret
// 4. Taking the MD5 hash of the result
//
// The format and callback parameters are skipped, so the result is the
// same whether or not they have been added yet.
func calculateSignature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if unsignedParams[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params[k])
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// sign adds api_sig to params. It fails with ErrMissingSecret when the
// client has no secret, before anything is sent.
func (c *Client) sign(params map[string]string) error {
	if c.apiSecret == "" {
		return ErrMissingSecret
	}
	params["api_sig"] = calculateSignature(params, c.apiSecret)
	return nil
}
