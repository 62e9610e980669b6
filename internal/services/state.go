package services

import (
	"context"

	"github.com/lydakis/corehost/internal/pkg/json"
)

// StateHandler serves StateService.
type StateHandler struct {
	base
}

func (h *StateHandler) Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error) {
	switch method {
	case "getLatestState":
		resp, err := unary[stateMessage](ctx, &h.base, method, newEmptyRequest())
		if err != nil {
			return nil, err
		}
		h.log.Debugf("received state, state_json length: %d", len(resp.StateJSON))
		return h.decodeState(resp), nil
	case "subscribeToState":
		return subscribe(ctx, &h.base, method, newEmptyRequest(), h.decodeState, opts)
	default:
		return h.notImplemented(method), nil
	}
}

// decodeState parses the embedded state document. Unparsable documents are
// passed through as {"state_json": raw}.
func (h *StateHandler) decodeState(s *stateMessage) any {
	var v any
	if err := json.Unmarshal([]byte(s.StateJSON), &v); err != nil {
		h.log.Debugf("failed to parse state_json: %v, using raw string", err)
		return map[string]any{"state_json": s.StateJSON}
	}
	return v
}
