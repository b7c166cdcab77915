package caller

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Caller identifies where a request came from. All fields are optional.
type Caller struct {
	Source    string `json:"source,omitempty"`
	Type      string `json:"type,omitempty"`
	ID        string `json:"id,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

// LegacyPaths are the entry points that used to host their own chat page.
var LegacyPaths = []string{"/mobile", "/b4b", "/search", "/live", "/buildops"}

// idParams maps the identity query parameters to caller types, highest
// precedence first.
var idParams = []struct {
	param string
	typ   string
}{
	{param: "user_id", typ: "user"},
	{param: "partner_id", typ: "partner"},
	{param: "supplier_id", typ: "supplier"},
	{param: "webuser_id", typ: "web_user"},
}

func New(next http.Handler) *Middleware {
	return &Middleware{
		Next: next,
	}
}

type Middleware struct {
	Next http.Handler
}

type callerContextKey int

const callerKey callerContextKey = 0

func Get(r *http.Request) (c Caller, ok bool) {
	c, ok = r.Context().Value(callerKey).(Caller)
	return
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func (m *Middleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if target, ok := redirectTarget(r); ok {
		http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		return
	}
	r = r.WithContext(WithCaller(r.Context(), fromRequest(r)))
	m.Next.ServeHTTP(w, r)
}

func redirectTarget(r *http.Request) (target string, ok bool) {
	if r.Method != http.MethodGet {
		return "", false
	}
	q := r.URL.Query()
	if source, isLegacy := legacySource(r.URL.Path); isLegacy {
		q.Set("source", source)
		if typ, id, found := identity(q); found && q.Get("type") == "" {
			q.Set("type", typ)
			q.Set("id", id)
		}
		return (&url.URL{Path: "/chat", RawQuery: q.Encode()}).String(), true
	}
	if r.URL.Path != "/chat" && !strings.HasPrefix(r.URL.Path, "/chat/") {
		return "", false
	}
	if q.Get("type") != "" {
		return "", false
	}
	typ, id, found := identity(q)
	if !found {
		return "", false
	}
	q.Set("type", typ)
	q.Set("id", id)
	return (&url.URL{Path: r.URL.Path, RawQuery: q.Encode()}).String(), true
}

func legacySource(path string) (source string, ok bool) {
	for _, p := range LegacyPaths {
		if path == p {
			return strings.TrimPrefix(p, "/"), true
		}
	}
	return "", false
}

func identity(q url.Values) (typ, id string, ok bool) {
	for _, p := range idParams {
		if v := q.Get(p.param); v != "" {
			return p.typ, v, true
		}
	}
	return "", "", false
}

func fromRequest(r *http.Request) Caller {
	q := r.URL.Query()
	return Caller{
		Source:    firstNonEmpty(q.Get("source"), r.Header.Get("X-Source")),
		Type:      firstNonEmpty(q.Get("type"), r.Header.Get("X-Caller-Type")),
		ID:        firstNonEmpty(q.Get("id"), r.Header.Get("X-Caller-ID")),
		CompanyID: firstNonEmpty(q.Get("company_id"), r.Header.Get("X-Company-ID")),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
