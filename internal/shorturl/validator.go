// Package shorturl はURL短縮サービスのドメインロジックを提供する。
package shorturl

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// urlPattern は受け付けるURLの文法。
// スキームは省略可。ホストはドット区切りのラベルと2文字以上のTLD、またはIPv4。
var urlPattern = regexp.MustCompile(`(?i)^(https?://)?` +
	`((([a-z\d]([a-z\d-]*[a-z\d])*)\.)+[a-z]{2,}|((\d{1,3}\.){3}\d{1,3}))` +
	`(:\d+)?(/[-a-z\d%_.~+]*)*` +
	`(\?[;&a-z\d%_.~+=-]*)?` +
	`(#[-a-z\d_]*)?$`)

// Validator は短縮対象のURLを検証する。
// 国際化ドメイン名はPunycodeに変換してから文法と照合する。
type Validator struct {
	profile *idna.Profile
}

// NewValidator はValidatorを生成する。
func NewValidator() *Validator {
	return &Validator{profile: idna.Lookup}
}

// Valid はURLが受け付け可能かどうかを返す。
func (v *Validator) Valid(raw string) bool {
	if raw == "" || !utf8.ValidString(raw) {
		return false
	}

	ascii, ok := v.toASCIIHost(raw)
	if !ok {
		return false
	}
	return urlPattern.MatchString(ascii)
}

// toASCIIHost はホスト部分だけをASCII表記に置き換えたURLを返す。
func (v *Validator) toASCIIHost(raw string) (string, bool) {
	rest := raw
	scheme := ""
	lower := strings.ToLower(raw)
	for _, s := range []string{"https://", "http://"} {
		if strings.HasPrefix(lower, s) {
			scheme, rest = raw[:len(s)], raw[len(s):]
			break
		}
	}

	end := strings.IndexAny(rest, ":/?#")
	if end < 0 {
		end = len(rest)
	}
	host := rest[:end]

	if isASCII(host) {
		return raw, true
	}

	converted, err := v.profile.ToASCII(host)
	if err != nil {
		return "", false
	}
	return scheme + converted + rest[end:], true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
