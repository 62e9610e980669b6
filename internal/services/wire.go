package services

import (
	"bytes"
	"strconv"
)

// Wire types mirror the core's proto messages in their JSON mapping.

type metadata struct{}

type emptyRequest struct {
	Metadata *metadata `json:"metadata,omitempty"`
}

type empty struct{}

func newEmptyRequest() *emptyRequest {
	return &emptyRequest{Metadata: &metadata{}}
}

type stateMessage struct {
	StateJSON string `json:"stateJson"`
}

type clineMessage struct {
	Ts                          flexInt64 `json:"ts"`
	Type                        enumValue `json:"type"`
	Ask                         enumValue `json:"ask"`
	Say                         enumValue `json:"say"`
	Text                        string    `json:"text"`
	Reasoning                   string    `json:"reasoning"`
	Images                      []string  `json:"images"`
	Files                       []string  `json:"files"`
	Partial                     bool      `json:"partial"`
	LastCheckpointHash          string    `json:"lastCheckpointHash"`
	IsCheckpointCheckedOut      bool      `json:"isCheckpointCheckedOut"`
	IsOperationOutsideWorkspace bool      `json:"isOperationOutsideWorkspace"`
	ConversationHistoryIndex    flexInt64 `json:"conversationHistoryIndex"`
}

type mcpServers struct {
	McpServers []mcpServer `json:"mcpServers"`
}

type mcpServer struct {
	Name              string                `json:"name"`
	Config            string                `json:"config"`
	Status            enumValue             `json:"status"`
	Error             string                `json:"error"`
	Disabled          bool                  `json:"disabled"`
	Timeout           flexInt64             `json:"timeout"`
	Tools             []mcpTool             `json:"tools"`
	Resources         []mcpResource         `json:"resources"`
	ResourceTemplates []mcpResourceTemplate `json:"resourceTemplates"`
}

type mcpTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema string `json:"inputSchema"`
	AutoApprove bool   `json:"autoApprove"`
}

type mcpResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Description string `json:"description"`
}

type mcpResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	Description string `json:"description"`
}

// flexInt64 decodes both JSON numbers and the quoted form proto JSON uses
// for 64-bit integers.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		b = []byte(s)
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt64(n)
	return nil
}

func (f flexInt64) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(f), 10), nil
}

// enumValue holds a proto enum sent either by number or by name.
type enumValue struct {
	num  int32
	name string
}

func (e *enumValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = enumValue{}
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return err
		}
		*e = enumValue{name: s}
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return err
	}
	*e = enumValue{num: int32(n)}
	return nil
}

func (e enumValue) MarshalJSON() ([]byte, error) {
	if e.name != "" {
		return []byte(strconv.Quote(e.name)), nil
	}
	return strconv.AppendInt(nil, int64(e.num), 10), nil
}

// value returns the enum as the UI expects it: the number, or the name when
// only a name was sent.
func (e enumValue) value() any {
	if e.name != "" {
		return e.name
	}
	return e.num
}

// number resolves the enum to its numeric value using names when needed.
func (e enumValue) number(names map[string]int32) int32 {
	if e.name == "" {
		return e.num
	}
	if n, ok := names[e.name]; ok {
		return n
	}
	return 0
}
