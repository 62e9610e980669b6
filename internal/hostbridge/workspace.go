package hostbridge

import "context"

func (s *Server) getWorkspacePaths(ctx context.Context, req request) (any, error) {
	paths := make([]any, 0, len(s.settings.WorkspacePaths))
	for _, p := range s.settings.WorkspacePaths {
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		paths = append(paths, ".")
	}
	resp := map[string]any{"paths": paths}
	if id := req.text("id"); id != "" {
		resp["id"] = id
	}
	return resp, nil
}

func (s *Server) saveOpenDocumentIfDirty(ctx context.Context, req request) (any, error) {
	s.emit("save-document", "", req.text("filePath"))
	return map[string]any{"wasSaved": false}, nil
}

func (s *Server) getDiagnostics(ctx context.Context, req request) (any, error) {
	return map[string]any{"fileDiagnostics": []any{}}, nil
}

func (s *Server) searchWorkspaceItems(ctx context.Context, req request) (any, error) {
	return map[string]any{"items": []any{}}, nil
}

func (s *Server) openProblemsPanel(ctx context.Context, req request) (any, error) {
	s.emit("open-problems-panel", "", nil)
	return map[string]any{}, nil
}

func (s *Server) openInFileExplorerPanel(ctx context.Context, req request) (any, error) {
	s.emit("open-file-explorer", "", req.text("path"))
	return map[string]any{}, nil
}
