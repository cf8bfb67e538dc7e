package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IPWhitelist only lets through clients whose IP matches one of entries,
// given as plain addresses or CIDR ranges. Unparseable entries are ignored.
// With no usable entry every request is rejected.
func IPWhitelist(entries []string) gin.HandlerFunc {
	var nets []*net.IPNet
	for _, e := range entries {
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return func(c *gin.Context) {
		ip := net.ParseIP(c.ClientIP())
		if ip != nil {
			for _, n := range nets {
				if n.Contains(ip) {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN", "message": "access denied"})
	}
}
