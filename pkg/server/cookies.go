package server

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// CookiePolicy fills in the attributes of response cookies that the
// application leaves unset.
type CookiePolicy struct {
	secure   bool
	sameSite http.SameSite
	domain   string
	trusted  *proxyMatcher
}

// NewCookiePolicy builds the policy from the server configuration.
func NewCookiePolicy(config *ServerConfig, logger *slog.Logger) *CookiePolicy {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &CookiePolicy{
		secure:   config.SecureCookies,
		sameSite: config.SameSite,
		domain:   config.CookieDomain,
		trusted:  newProxyMatcher(config.TrustedProxies, logger),
	}
}

func (p *CookiePolicy) apply(r *http.Request, c *http.Cookie) {
	if p == nil {
		return
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.SameSite == 0 {
		c.SameSite = p.sameSite
	}
	if c.Domain == "" {
		c.Domain = p.domain
	}
	if p.secure && p.isRequestSecure(r) {
		c.Secure = true
	}
}

func (p *CookiePolicy) isRequestSecure(r *http.Request) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil {
		return true
	}
	if !p.trusted.IsTrusted(remoteIPFromRequest(r)) {
		return false
	}

	if proto := forwardedProto(r.Header.Get("Forwarded")); proto != "" {
		return isSecureProto(proto)
	}
	if proto := forwardedProtoValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return isSecureProto(proto)
	}
	return false
}

// requestCookies is the cookie handle given to middleware, loaders and
// handlers for one request.
type requestCookies struct {
	r      *http.Request
	w      http.ResponseWriter
	policy *CookiePolicy
}

func newRequestCookies(w http.ResponseWriter, r *http.Request, policy *CookiePolicy) *requestCookies {
	return &requestCookies{r: r, w: w, policy: policy}
}

// Get returns the value of the named request cookie.
func (c *requestCookies) Get(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Set adds a Set-Cookie header. It has no effect once the response
// headers are written.
func (c *requestCookies) Set(cookie *http.Cookie) {
	if cookie == nil || cookie.Name == "" {
		return
	}
	ck := *cookie
	c.policy.apply(c.r, &ck)
	http.SetCookie(c.w, &ck)
}

func forwardedProto(header string) string {
	if header == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	for _, param := range strings.Split(first, ";") {
		kv := strings.SplitN(strings.TrimSpace(param), "=", 2)
		if len(kv) != 2 {
			continue
		}
		if strings.EqualFold(kv[0], "proto") {
			return strings.ToLower(strings.Trim(strings.TrimSpace(kv[1]), "\""))
		}
	}
	return ""
}

func forwardedProtoValue(header string) string {
	if header == "" {
		return ""
	}
	value := strings.TrimSpace(strings.Split(header, ",")[0])
	return strings.ToLower(strings.Trim(value, "\""))
}

func isSecureProto(proto string) bool {
	return strings.EqualFold(proto, "https")
}

func remoteIPFromRequest(r *http.Request) net.IP {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return nil
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	return net.ParseIP(host)
}

type proxyMatcher struct {
	ips  map[string]struct{}
	nets []*net.IPNet
}

func newProxyMatcher(entries []string, logger *slog.Logger) *proxyMatcher {
	if len(entries) == 0 {
		return nil
	}

	ips := make(map[string]struct{})
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				if logger != nil {
					logger.Warn("invalid trusted proxy CIDR", "entry", entry, "error", err)
				}
				continue
			}
			nets = append(nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			if logger != nil {
				logger.Warn("invalid trusted proxy IP", "entry", entry)
			}
			continue
		}
		ips[ip.String()] = struct{}{}
	}

	if len(ips) == 0 && len(nets) == 0 {
		return nil
	}
	return &proxyMatcher{ips: ips, nets: nets}
}

func (m *proxyMatcher) IsTrusted(ip net.IP) bool {
	if m == nil || ip == nil {
		return false
	}
	if _, ok := m.ips[ip.String()]; ok {
		return true
	}
	for _, network := range m.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
