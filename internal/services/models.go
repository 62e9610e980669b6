package services

import (
	"context"
	"time"
)

// ModelsHandler answers ModelsService locally. The core does not expose
// these methods to this host, so each returns an empty default of the shape
// the UI expects.
type ModelsHandler struct {
	base
	now func() time.Time
}

func (h *ModelsHandler) Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error) {
	h.log.Debugf("answering %s locally", method)
	switch method {
	case "subscribeToOpenRouterModels":
		return map[string]any{"models": []any{}, "lastUpdated": h.now().UnixMilli()}, nil
	case "getOllamaModels", "getLmStudioModels", "getVsCodeLmModels", "getSapAiCoreModels":
		return map[string]any{"models": []any{}}, nil
	case "updateApiConfigurationProto":
		return map[string]any{"success": true}, nil
	default:
		// refresh*Models and anything newer.
		return map[string]any{"models": []any{}, "success": true}, nil
	}
}
