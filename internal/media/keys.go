package media

import (
	"net/url"
	"path"
	"strings"
)

// DeriveKey maps a source object key to its artifact key: slashes are
// dropped, the extension is replaced by ext, and prefix is prepended.
func DeriveKey(objectKey, ext, prefix string) string {
	id := strings.ReplaceAll(objectKey, "/", "")
	if ext := path.Ext(id); ext != id {
		id = strings.TrimSuffix(id, ext)
	}
	return prefix + id + ext
}

// DecodeEventKey undoes the form encoding storage notifications apply to
// object keys. Malformed escapes leave the key untouched.
func DecodeEventKey(raw string) string {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return key
}
