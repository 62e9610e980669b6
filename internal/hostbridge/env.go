package hostbridge

import "context"

func (s *Server) clipboardWriteText(ctx context.Context, req request) (any, error) {
	text := req.text("value")
	s.mu.Lock()
	s.clipboard = text
	s.mu.Unlock()
	s.emit("clipboard-write", "", text)
	return map[string]any{}, nil
}

func (s *Server) clipboardReadText(ctx context.Context, req request) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"value": s.clipboard}, nil
}

func (s *Server) getMachineID(ctx context.Context, req request) (any, error) {
	return map[string]any{"value": s.machineID}, nil
}

func (s *Server) getHostVersion(ctx context.Context, req request) (any, error) {
	return map[string]any{"version": s.settings.HostVersion, "platform": platform}, nil
}

func (s *Server) getWebviewHTML(ctx context.Context, req request) (any, error) {
	return map[string]any{"html": "<html><body>corehost webview</body></html>"}, nil
}
