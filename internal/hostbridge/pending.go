package hostbridge

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ask raises event for the UI and, when an interaction timeout is set,
// waits that long for Resolve. It returns the answer, or nil with ok false
// when the UI did not answer in time.
func (s *Server) ask(ctx context.Context, event string, payload any) (answer any, ok bool) {
	id := uuid.NewString()
	timeout := s.settings.InteractionTimeout
	if timeout <= 0 {
		s.emit(event, id, payload)
		return nil, false
	}

	ch := make(chan any, 1)
	s.pending.Store(id, ch)
	defer s.pending.Delete(id)
	s.emit(event, id, payload)

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case v := <-ch:
		return v, true
	case <-t.C:
		s.log.Debugf("%s %s: no answer within %s", event, id, timeout)
	case <-ctx.Done():
	}
	return nil, false
}

// Resolve delivers the UI's answer for a pending interaction. It reports
// whether id was still waiting.
func (s *Server) Resolve(id string, answer any) bool {
	ch, ok := s.pending.LoadAndDelete(id)
	if !ok {
		return false
	}
	select {
	case ch <- answer:
	default:
	}
	return true
}

// Pending returns the number of interactions waiting for an answer.
func (s *Server) Pending() int {
	n := 0
	s.pending.Range(func(string, chan any) bool {
		n++
		return true
	})
	return n
}

func answerString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		for _, key := range []string{"value", "response", "selectedOption", "selectedPath"} {
			if s, ok := t[key].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func answerPaths(v any) []any {
	switch t := v.(type) {
	case string:
		if t == "" {
			return []any{}
		}
		return []any{t}
	case []any:
		out := make([]any, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case map[string]any:
		return answerPaths(t["paths"])
	}
	return []any{}
}
