package stac

import (
	"net/url"
)

// SignURL appends the subscription key to the asset URL as a
// query parameter. Catalogs that issue time limited links use
// the key to hand out longer lived URLs; an empty key leaves
// the URL untouched.
func SignURL(rawURL, subscriptionKey string) (string, error) {
	if len(subscriptionKey) == 0 {
		return rawURL, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	query := u.Query()
	query.Set("subscription-key", subscriptionKey)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// UnsignedURL strips any signing query parameters from an
// asset URL so callers can compare URLs independently of the
// signature attached to them.
func UnsignedURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	return u.String(), nil
}
