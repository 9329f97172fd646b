package authsync

import (
	"net"
	"strings"
)

// previewSuffixes are multi-tenant preview hosting domains. Deployments
// under them are unrelated to each other, so no cookie sharing is attempted
// across sibling subdomains.
var previewSuffixes = []string{
	".vercel.app",
	".netlify.app",
	".pages.dev",
}

// RootDomain derives the cookie scope shared by an application and its
// subdomain family: the hostname stripped to its last three labels.
//
// localhost, IP addresses (loopback included), and preview deployments are
// their own exact root.
func RootDomain(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	host = strings.TrimSuffix(host, ".")
	if host == "" || host == "localhost" {
		return host
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		return host
	}
	for _, suffix := range previewSuffixes {
		if strings.HasSuffix(host, suffix) {
			return host
		}
	}

	labels := strings.Split(host, ".")
	if len(labels) <= 3 {
		return host
	}
	return strings.Join(labels[len(labels)-3:], ".")
}
