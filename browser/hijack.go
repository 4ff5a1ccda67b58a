package browser

import (
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var blockedMediaTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeImage: {},
	proto.NetworkResourceTypeMedia: {},
	proto.NetworkResourceTypeFont:  {},
}

// setupMediaBlock installs a request interceptor that fails requests
// for image/media/font resources, per blockMedia in spec §4.D. It
// returns nil (nothing to stop) when blocking is disabled.
func setupMediaBlock(page *rod.Page, enabled bool) *rod.HijackRouter {
	if !enabled {
		return nil
	}

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if _, blocked := blockedMediaTypes[ctx.Request.Type()]; blocked {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}
