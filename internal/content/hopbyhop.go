package content

import (
	"net/http"
	"strings"
)

// hopByHopHeaders is the standard set of connection-scoped headers a
// proxy must not forward verbatim, the same list net/http/httputil's
// ReverseProxy strips.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// StripHopByHopHeaders removes the standard hop-by-hop headers from
// header, plus any extra header names the traffic's own Connection
// header nominates. Content sources call it on the outbound request
// before forwarding; the Proxy Pass Engine calls it again on the
// response before copying headers to the client.
func StripHopByHopHeaders(header http.Header) {
	for _, extra := range header.Values("Connection") {
		for _, name := range strings.Split(extra, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				header.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		header.Del(name)
	}
}
