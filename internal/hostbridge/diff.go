package hostbridge

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// diffDocument is the right-hand side of an open diff view, kept as lines.
type diffDocument struct {
	path string

	mu    sync.Mutex
	lines []string
}

func (d *diffDocument) text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return strings.Join(d.lines, "\n")
}

// replace swaps lines [start, end) for content, clamping both bounds.
func (d *diffDocument) replace(content string, start, end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	start = clamp(start, 0, len(d.lines))
	end = clamp(end, start, len(d.lines))
	repl := splitLines(content)
	out := make([]string, 0, len(d.lines)-(end-start)+len(repl))
	out = append(out, d.lines[:start]...)
	out = append(out, repl...)
	out = append(out, d.lines[end:]...)
	d.lines = out
}

func (d *diffDocument) truncate(end int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = d.lines[:clamp(end, 0, len(d.lines))]
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func (s *Server) diff(req request) (string, *diffDocument, error) {
	id := req.text("diffId")
	doc, ok := s.diffs.Load(id)
	if !ok {
		return id, nil, status.Errorf(codes.NotFound, "no open diff %q", id)
	}
	return id, doc, nil
}

func (s *Server) openDiff(ctx context.Context, req request) (any, error) {
	id := "diff-" + uuid.NewString()
	doc := &diffDocument{path: req.text("path"), lines: splitLines(req.text("content"))}
	s.diffs.Store(id, doc)
	s.emit("open-diff", id, map[string]any{"path": doc.path, "diff_id": id})
	return map[string]any{"diffId": id}, nil
}

func (s *Server) getDocumentText(ctx context.Context, req request) (any, error) {
	_, doc, err := s.diff(req)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": doc.text()}, nil
}

func (s *Server) replaceText(ctx context.Context, req request) (any, error) {
	id, doc, err := s.diff(req)
	if err != nil {
		return nil, err
	}
	start, _ := req.number("startLine")
	end, ok := req.number("endLine")
	if !ok {
		end = start
	}
	doc.replace(req.text("content"), start, end)
	s.emit("diff-updated", id, map[string]any{"path": doc.path, "content": doc.text()})
	return map[string]any{}, nil
}

func (s *Server) scrollDiff(ctx context.Context, req request) (any, error) {
	id, _, err := s.diff(req)
	if err != nil {
		return nil, err
	}
	line, _ := req.number("line")
	s.emit("scroll-diff", id, map[string]any{"line": line})
	return map[string]any{}, nil
}

func (s *Server) truncateDocument(ctx context.Context, req request) (any, error) {
	id, doc, err := s.diff(req)
	if err != nil {
		return nil, err
	}
	end, _ := req.number("endLine")
	doc.truncate(end)
	s.emit("diff-updated", id, map[string]any{"path": doc.path, "content": doc.text()})
	return map[string]any{}, nil
}

func (s *Server) saveDocument(ctx context.Context, req request) (any, error) {
	id, doc, err := s.diff(req)
	if err != nil {
		return nil, err
	}
	s.emit("save-document", id, map[string]any{"path": doc.path, "content": doc.text()})
	return map[string]any{}, nil
}

func (s *Server) closeAllDiffs(ctx context.Context, req request) (any, error) {
	s.diffs.Range(func(id string, _ *diffDocument) bool {
		s.diffs.Delete(id)
		return true
	})
	s.emit("close-all-diffs", "", nil)
	return map[string]any{}, nil
}

func (s *Server) openMultiFileDiff(ctx context.Context, req request) (any, error) {
	s.emit("open-multi-file-diff", "", map[string]any{
		"title": req.text("title"),
		"diffs": req["diffs"],
	})
	return map[string]any{}, nil
}

// subscribeToFile announces the watch to the UI. The host does not watch
// files itself, so the stream ends without events.
func (s *Server) subscribeToFile(req request, stream grpc.ServerStream) error {
	s.emit("subscribe-to-file", "", map[string]any{"path": req.text("path")})
	return nil
}
