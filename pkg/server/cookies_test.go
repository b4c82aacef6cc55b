package server

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func setCookie(policy *CookiePolicy, req *http.Request, c *http.Cookie) []*http.Cookie {
	rr := httptest.NewRecorder()
	newRequestCookies(rr, req, policy).Set(c)
	return rr.Result().Cookies()
}

func TestRequestCookies_Get(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	c := newRequestCookies(httptest.NewRecorder(), req, nil)

	if v, ok := c.Get("theme"); !ok || v != "dark" {
		t.Errorf("Get(theme) = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestRequestCookies_SetAppliesDefaults(t *testing.T) {
	config := DefaultServerConfig()
	config.CookieDomain = "example.com"
	policy := NewCookiePolicy(config, quietLogger())

	cookies := setCookie(policy, httptest.NewRequest(http.MethodGet, "http://example.com/", nil),
		&http.Cookie{Name: "session", Value: "abc", HttpOnly: true})
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Path != "/" || c.SameSite != http.SameSiteLaxMode || c.Domain != "example.com" || !c.HttpOnly {
		t.Errorf("cookie = %+v", c)
	}
	if c.Secure {
		t.Error("plain HTTP request should not get Secure cookies")
	}
}

func TestRequestCookies_SetKeepsExplicitAttributes(t *testing.T) {
	policy := NewCookiePolicy(nil, nil)
	cookies := setCookie(policy, httptest.NewRequest(http.MethodGet, "/", nil),
		&http.Cookie{Name: "a", Value: "1", Path: "/docs", SameSite: http.SameSiteStrictMode})
	if c := cookies[0]; c.Path != "/docs" || c.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie = %+v", c)
	}
}

func TestRequestCookies_SetAppends(t *testing.T) {
	rr := httptest.NewRecorder()
	c := newRequestCookies(rr, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	c.Set(&http.Cookie{Name: "a", Value: "1"})
	c.Set(&http.Cookie{Name: "b", Value: "2"})
	c.Set(nil)
	c.Set(&http.Cookie{Value: "nameless"})

	if got := len(rr.Result().Cookies()); got != 2 {
		t.Errorf("cookies = %d, want 2", got)
	}
}

func TestCookiePolicy_Secure(t *testing.T) {
	config := DefaultServerConfig()
	config.TrustedProxies = []string{"203.0.113.10", "10.0.0.0/8", "not-an-ip"}
	policy := NewCookiePolicy(config, quietLogger())

	tests := []struct {
		name   string
		remote string
		tls    bool
		header map[string]string
		want   bool
	}{
		{"tls", "198.51.100.1:1000", true, nil, true},
		{"plain", "198.51.100.1:1000", false, nil, false},
		{"trusted x-forwarded-proto", "203.0.113.10:1234", false, map[string]string{"X-Forwarded-Proto": "https"}, true},
		{"trusted cidr", "10.1.2.3:1234", false, map[string]string{"X-Forwarded-Proto": "HTTPS, http"}, true},
		{"trusted forwarded", "203.0.113.10:1234", false, map[string]string{"Forwarded": `for=1.2.3.4;proto="https"`}, true},
		{"forwarded wins", "203.0.113.10:1234", false, map[string]string{"Forwarded": "proto=http", "X-Forwarded-Proto": "https"}, false},
		{"untrusted proxy", "198.51.100.1:1000", false, map[string]string{"X-Forwarded-Proto": "https"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
			req.RemoteAddr = tt.remote
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			cookies := setCookie(policy, req, &http.Cookie{Name: "s", Value: "v"})
			if cookies[0].Secure != tt.want {
				t.Errorf("Secure = %v, want %v", cookies[0].Secure, tt.want)
			}
		})
	}
}

func TestCookiePolicy_SecureDisabled(t *testing.T) {
	config := DefaultServerConfig()
	config.SecureCookies = false
	req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
	req.TLS = &tls.ConnectionState{}

	if setCookie(NewCookiePolicy(config, nil), req, &http.Cookie{Name: "s", Value: "v"})[0].Secure {
		t.Error("Secure should stay off when disabled")
	}
}

func TestProxyMatcher(t *testing.T) {
	if newProxyMatcher(nil, nil) != nil {
		t.Error("no entries should yield no matcher")
	}
	if newProxyMatcher([]string{"bogus", "10.0.0.0/99"}, quietLogger()) != nil {
		t.Error("only invalid entries should yield no matcher")
	}

	m := newProxyMatcher([]string{"::1", "192.168.0.0/16"}, nil)
	for ip, want := range map[string]bool{
		"::1":         true,
		"192.168.4.4": true,
		"192.169.0.1": false,
		"127.0.0.1":   false,
	} {
		if got := m.IsTrusted(net.ParseIP(ip)); got != want {
			t.Errorf("IsTrusted(%s) = %v, want %v", ip, got, want)
		}
	}
}

func TestRemoteIPFromRequest(t *testing.T) {
	tests := map[string]string{
		"192.0.2.1:1234":     "192.0.2.1",
		"[::1]:80":           "::1",
		"[fe80::1%eth0]:443": "fe80::1",
		"192.0.2.9":          "192.0.2.9",
	}
	for remote, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := remoteIPFromRequest(req); got.String() != want {
			t.Errorf("remoteIPFromRequest(%q) = %v, want %s", remote, got, want)
		}
	}
}
