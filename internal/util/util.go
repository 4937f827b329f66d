package util

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

func GetIDFromString(str *string) string {
	hasher := sha1.New()
	hasher.Write([]byte(*str))

	return hex.EncodeToString(hasher.Sum(nil))
}

// GetMagnetID returns a stable id for a magnet link. Links that carry the same info hash
// share an id even if their trackers or display names differ.
func GetMagnetID(link string) string {
	key := link
	if hash := MagnetInfoHash(link); hash != "" {
		key = "btih:" + hash
	}

	return GetIDFromString(&key)
}

// MagnetInfoHash returns the lower-cased btih of a magnet link, or "" if there is none.
func MagnetInfoHash(link string) string {
	q := magnetQuery(link)
	for _, xt := range q["xt"] {
		if h, ok := strings.CutPrefix(strings.ToLower(xt), "urn:btih:"); ok {
			return h
		}
	}

	return ""
}

// MagnetParam returns the first value of a magnet link parameter such as dn or xl.
func MagnetParam(link, name string) string {
	return magnetQuery(link).Get(name)
}

func magnetQuery(link string) url.Values {
	_, rawQuery, ok := strings.Cut(link, "?")
	if !ok || !strings.HasPrefix(strings.ToLower(link), "magnet:") {
		return url.Values{}
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return url.Values{}
	}

	return q
}
