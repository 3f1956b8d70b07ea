package provider

import xearthlayer "github.com/xearthlayer/xearthlayer"

// httpStatusKind maps a non-2xx HTTP status to the error taxonomy: server
// errors are retry-eligible, client errors are not.
func httpStatusKind(status int) xearthlayer.ErrorKind {
	if status >= 500 || status == 429 {
		return xearthlayer.KindTransient
	}
	return xearthlayer.KindPermanent
}
