package hostbridge

import "context"

func (s *Server) showOpenDialogue(ctx context.Context, req request) (any, error) {
	answer, ok := s.ask(ctx, "show-open-dialogue", map[string]any{
		"can_select_many": req.flag("canSelectMany"),
		"open_label":      req.text("openLabel"),
		"filters":         req["filters"],
	})
	paths := []any{}
	if ok {
		paths = answerPaths(answer)
	}
	return map[string]any{"paths": paths}, nil
}

func (s *Server) showMessage(ctx context.Context, req request) (any, error) {
	answer, ok := s.ask(ctx, "show-message", map[string]any{
		"type":    req["type"],
		"message": req.text("message"),
		"options": req["options"],
	})
	selected := "ok"
	if v, isString := answerString(answer); ok && isString {
		selected = v
	}
	return map[string]any{"selectedOption": selected}, nil
}

func (s *Server) showInputBox(ctx context.Context, req request) (any, error) {
	answer, ok := s.ask(ctx, "show-input-box", map[string]any{
		"title":  req.text("title"),
		"prompt": req.text("prompt"),
		"value":  req.text("value"),
	})
	response := ""
	if v, isString := answerString(answer); ok && isString {
		response = v
	}
	return map[string]any{"response": response}, nil
}

func (s *Server) showSaveDialog(ctx context.Context, req request) (any, error) {
	opts := req.object("options")
	answer, ok := s.ask(ctx, "show-save-dialog", map[string]any{
		"default_path": opts.text("defaultPath"),
		"filters":      opts["filters"],
	})
	if v, isString := answerString(answer); ok && isString && v != "" {
		return map[string]any{"selectedPath": v}, nil
	}
	return map[string]any{}, nil
}

func (s *Server) showTextDocument(ctx context.Context, req request) (any, error) {
	path := req.text("path")
	s.emit("open-document", "", path)
	resp := map[string]any{"documentPath": path, "isActive": true}
	if col, ok := req.object("options").number("viewColumn"); ok {
		resp["viewColumn"] = col
	}
	return resp, nil
}

func (s *Server) openFile(ctx context.Context, req request) (any, error) {
	s.emit("open-file", "", req.text("filePath"))
	return map[string]any{}, nil
}

func (s *Server) openSettings(ctx context.Context, req request) (any, error) {
	s.emit("open-settings", "", req.text("query"))
	return map[string]any{}, nil
}

// Tabs and the active editor live in the UI; the host has no view of them.

func (s *Server) getOpenTabs(ctx context.Context, req request) (any, error) {
	return map[string]any{"paths": []any{}}, nil
}

func (s *Server) getVisibleTabs(ctx context.Context, req request) (any, error) {
	return map[string]any{"paths": []any{}}, nil
}

func (s *Server) getActiveEditor(ctx context.Context, req request) (any, error) {
	return map[string]any{}, nil
}
