package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy configures cross-origin access. Origins may be exact
// ("https://book.example.com"), "*", or a subdomain wildcard
// ("https://*.example.com").
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", RequestIDHeader}
)

type corsRules struct {
	any         bool
	exact       map[string]bool
	suffixes    [][2]string // scheme+"://", "."+domain
	methods     map[string]bool
	methodList  string
	headerList  string
	credentials bool
	maxAge      string
}

func compileCORS(cfg CORSPolicy) corsRules {
	rules := corsRules{
		exact:       make(map[string]bool),
		methods:     make(map[string]bool),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range trimAll(cfg.AllowedOrigins) {
		o = strings.ToLower(o)
		switch {
		case o == "*":
			rules.any = true
		case strings.Contains(o, "://*."):
			scheme, domain, _ := strings.Cut(o, "://*")
			rules.suffixes = append(rules.suffixes, [2]string{scheme + "://", domain})
		default:
			rules.exact[o] = true
		}
	}
	methods := trimAll(cfg.AllowedMethods)
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	for _, m := range methods {
		rules.methods[strings.ToUpper(m)] = true
	}
	rules.methodList = strings.Join(methods, ", ")
	headers := trimAll(cfg.AllowedHeaders)
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	rules.headerList = strings.Join(headers, ", ")
	if secs := int(cfg.MaxAge.Seconds()); secs > 0 {
		rules.maxAge = strconv.Itoa(secs)
	}
	return rules
}

func (c corsRules) empty() bool {
	return !c.any && len(c.exact) == 0 && len(c.suffixes) == 0
}

// allowOrigin returns the value for Access-Control-Allow-Origin. Credentialed
// policies echo the origin since browsers reject "*" with credentials.
func (c corsRules) allowOrigin(origin string) (string, bool) {
	lower := strings.ToLower(origin)
	if c.exact[lower] {
		return origin, true
	}
	for _, s := range c.suffixes {
		if strings.HasPrefix(lower, s[0]) && strings.HasSuffix(lower, s[1]) && len(lower) > len(s[0])+len(s[1]) {
			return origin, true
		}
	}
	if c.any {
		if c.credentials {
			return origin, true
		}
		return "*", true
	}
	return "", false
}

// WithCORS answers preflights for allowed origins and decorates their
// responses. Requests from other origins pass through without CORS headers.
// An empty origin list disables the middleware.
func WithCORS(cfg CORSPolicy) Middleware {
	rules := compileCORS(cfg)
	if rules.empty() {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			allow, ok := rules.allowOrigin(origin)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			h.Set("Access-Control-Allow-Origin", allow)
			if rules.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			requested := r.Header.Get("Access-Control-Request-Method")
			if r.Method != http.MethodOptions || requested == "" {
				next.ServeHTTP(w, r)
				return
			}
			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if !rules.methods[strings.ToUpper(requested)] {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h.Set("Access-Control-Allow-Methods", rules.methodList)
			h.Set("Access-Control-Allow-Headers", rules.headerList)
			if rules.maxAge != "" {
				h.Set("Access-Control-Max-Age", rules.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
