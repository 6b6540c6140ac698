package server

import (
	"slices"

	"github.com/gin-gonic/gin"
)

// Preset describes where the real client IP lives when the service runs
// behind a given kind of proxy.
type Preset struct {
	Name string

	// Platform is a single trusted header set by the edge, e.g. CF-Connecting-IP.
	Platform string

	// Headers are forwarding headers read when Platform is empty or absent.
	Headers []string
}

// PresetDirect uses the socket peer address.
var PresetDirect = Preset{Name: "direct"}

var presets = map[string]Preset{
	"direct":     PresetDirect,
	"cloudflare": {Name: "cloudflare", Platform: gin.PlatformCloudflare},
	"gcp":        {Name: "gcp", Platform: gin.PlatformGoogleAppEngine},
	"nginx":      {Name: "nginx", Headers: []string{"X-Real-IP"}},
	"aws":        {Name: "aws", Headers: []string{"X-Forwarded-For"}},
	"azure":      {Name: "azure", Headers: []string{"X-Forwarded-For"}},
	"vercel":     {Name: "vercel", Headers: []string{"X-Forwarded-For"}},
}

// ResolvePreset looks up a preset by name. Unknown names resolve to
// PresetDirect with ok false.
func ResolvePreset(name string) (Preset, bool) {
	if p, ok := presets[name]; ok {
		return p, true
	}
	return PresetDirect, false
}

// PresetNames returns the supported preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// apply configures how engine.ClientIP resolves addresses.
func (p Preset) apply(engine *gin.Engine) error {
	engine.TrustedPlatform = p.Platform

	if len(p.Headers) == 0 {
		engine.RemoteIPHeaders = nil
		return engine.SetTrustedProxies(nil)
	}

	// The proxy in front is the only thing that can reach us, so every hop is
	// trusted and the left-most forwarded address wins.
	engine.ForwardedByClientIP = true
	engine.RemoteIPHeaders = slices.Clone(p.Headers)
	return engine.SetTrustedProxies([]string{"0.0.0.0/0", "::/0"})
}
