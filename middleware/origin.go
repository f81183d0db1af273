package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"PPGateway/logger"
)

// Origin rejects websocket upgrades under path whose Origin header is not in
// allowed. An empty allow list or "*" accepts everything, and requests without
// an Origin header (non-browser clients) always pass.
func Origin(path string, allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	allowAll := len(allowed) == 0
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "*" {
			allowAll = true
		}
		if a != "" {
			set[a] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if allowAll || c.Request.Method != http.MethodGet || !underPath(c.Request.URL.Path, path) {
			return
		}
		origin := c.GetHeader("Origin")
		if origin == "" {
			return
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return
		}
		if u, err := url.Parse(origin); err == nil {
			if _, ok := set[strings.ToLower(u.Host)]; ok {
				return
			}
		}
		logger.Infof("[Origin] reject origin=%s path=%s remote=%s", origin, c.Request.URL.Path, c.ClientIP())
		c.AbortWithStatus(http.StatusForbidden)
	}
}

func underPath(p, base string) bool {
	return p == base || strings.HasPrefix(p, strings.TrimSuffix(base, "/")+"/")
}
