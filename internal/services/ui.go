package services

import "context"

// UIHandler serves UiService.
type UIHandler struct {
	base
}

func (h *UIHandler) Call(ctx context.Context, method string, payload any, opts StreamOptions) (any, error) {
	switch method {
	case "subscribeToPartialMessage":
		return subscribe(ctx, &h.base, method, newEmptyRequest(), partialMessage, opts)
	default:
		return h.notImplemented(method), nil
	}
}

func partialMessage(m *clineMessage) any {
	return map[string]any{
		"ts":                          int64(m.Ts),
		"type":                        m.Type.value(),
		"ask":                         m.Ask.value(),
		"say":                         m.Say.value(),
		"text":                        m.Text,
		"reasoning":                   m.Reasoning,
		"images":                      anySlice(m.Images),
		"files":                       anySlice(m.Files),
		"partial":                     m.Partial,
		"lastCheckpointHash":          m.LastCheckpointHash,
		"isCheckpointCheckedOut":      m.IsCheckpointCheckedOut,
		"isOperationOutsideWorkspace": m.IsOperationOutsideWorkspace,
		"conversationHistoryIndex":    int64(m.ConversationHistoryIndex),
	}
}

func anySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
