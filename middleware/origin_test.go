package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newEngine(allowed []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewManager(Origin("/ws", allowed))
	r := gin.New()
	r.Use(m.Use())
	r.GET("/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ws/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, path, origin string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestOrigin(t *testing.T) {
	r := newEngine([]string{"https://chat.example.com", "app.example.com"})

	cases := []struct {
		path, origin string
		want         int
	}{
		{"/ws", "", http.StatusOK},
		{"/ws", "https://chat.example.com", http.StatusOK},
		{"/ws", "http://app.example.com", http.StatusOK},
		{"/ws", "https://evil.example.com", http.StatusForbidden},
		{"/ws/42", "https://evil.example.com", http.StatusForbidden},
		{"/health", "https://evil.example.com", http.StatusOK},
	}
	for _, tc := range cases {
		if got := do(r, tc.path, tc.origin); got != tc.want {
			t.Errorf("%s origin=%q: got %d want %d", tc.path, tc.origin, got, tc.want)
		}
	}
}

func TestOriginAllowAll(t *testing.T) {
	for _, allowed := range [][]string{nil, {"*"}} {
		r := newEngine(allowed)
		if got := do(r, "/ws", "https://anything.example.org"); got != http.StatusOK {
			t.Fatalf("allowed=%v: got %d", allowed, got)
		}
	}
}

func TestManagerClear(t *testing.T) {
	m := NewManager()
	m.Add(func(c *gin.Context) { c.AbortWithStatus(http.StatusTeapot) })
	if m.Len() != 1 {
		t.Fatalf("len=%d", m.Len())
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(m.Use())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := do(r, "/x", ""); got != http.StatusTeapot {
		t.Fatalf("got %d", got)
	}
	m.Clear()
	if got := do(r, "/x", ""); got != http.StatusOK {
		t.Fatalf("after clear got %d", got)
	}
}
