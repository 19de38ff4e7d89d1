// Package privacy scrubs error messages before they leave the process.
// Database locations, URLs, e-mail addresses and credentials are replaced
// with stable anonymous tokens so identical failures still group together.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern    = regexp.MustCompile(`\b(?:https?|mysql|sqlite|file)://\S+`)
	dsnPattern    = regexp.MustCompile(`\b[^\s:@/]+:[^\s@]*@tcp\(([^)]*)\)/[^\s?]*(?:\?\S*)?`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	secretPattern = regexp.MustCompile(`(?i)\b(password|passwd|token|api[_-]?key|secret)[=:]\S+`)
)

// ScrubMessage anonymizes sensitive parts of message.
func ScrubMessage(message string) string {
	scrubbed := dsnPattern.ReplaceAllStringFunc(message, func(m string) string {
		host := dsnPattern.FindStringSubmatch(m)[1]
		return "mysql-dsn@" + categorizeHost(hostOnly(host))
	})
	scrubbed = urlPattern.ReplaceAllStringFunc(scrubbed, AnonymizeURL)
	scrubbed = emailPattern.ReplaceAllString(scrubbed, "[EMAIL]")
	scrubbed = secretPattern.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	return scrubbed
}

// AnonymizeURL replaces a URL with a hash of its scheme, host category,
// port and path depth.
func AnonymizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		hash := sha256.Sum256([]byte(rawURL))
		return fmt.Sprintf("url-hash-%x", hash[:8])
	}

	var parts []string
	if u.Scheme != "" {
		parts = append(parts, u.Scheme)
	}
	if host := u.Hostname(); host != "" {
		parts = append(parts, categorizeHost(host))
	}
	if u.Port() != "" {
		parts = append(parts, "port-"+u.Port())
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		parts = append(parts, fmt.Sprintf("depth-%d", strings.Count(p, "/")+1))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("url-%x", hash[:12])
}

func hostOnly(hostport string) string {
	if addr, err := netip.ParseAddrPort(hostport); err == nil {
		return addr.Addr().String()
	}
	if i := strings.LastIndexByte(hostport, ':'); i > 0 && !strings.Contains(hostport[:i], ":") {
		return hostport[:i]
	}
	return hostport
}

// categorizeHost keeps only the kind of host: localhost, private or public
// address, or the top-level domain of a name.
func categorizeHost(host string) string {
	if host == "localhost" {
		return "localhost"
	}
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		switch {
		case addr.IsLoopback():
			return "localhost"
		case addr.IsPrivate(), addr.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}
	if i := strings.LastIndexByte(host, '.'); i >= 0 && i < len(host)-1 {
		return "domain-" + host[i+1:]
	}
	return "unknown-host"
}
