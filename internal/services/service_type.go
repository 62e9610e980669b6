package services

import (
	"strings"
)

// ServiceType enumerates the core's RPC services.
type ServiceType int

const (
	State ServiceType = iota
	UI
	MCP
	File
	Models
	Task
	Account
	Browser
	Commands
	Checkpoints
	Slash
	Web
)

var serviceNames = [...]string{
	State:       "StateService",
	UI:          "UiService",
	MCP:         "McpService",
	File:        "FileService",
	Models:      "ModelsService",
	Task:        "TaskService",
	Account:     "AccountService",
	Browser:     "BrowserService",
	Commands:    "CommandsService",
	Checkpoints: "CheckpointsService",
	Slash:       "SlashService",
	Web:         "WebService",
}

// AllServiceTypes lists every known service in declaration order.
func AllServiceTypes() []ServiceType {
	out := make([]ServiceType, len(serviceNames))
	for i := range serviceNames {
		out[i] = ServiceType(i)
	}
	return out
}

// Name returns the unqualified service name, e.g. "StateService".
func (t ServiceType) Name() string {
	if t < 0 || int(t) >= len(serviceNames) {
		return "UnknownService"
	}
	return serviceNames[t]
}

// FullName qualifies the service with the proto package namespace.
func (t ServiceType) FullName(namespace string) string {
	if namespace == "" {
		return t.Name()
	}
	return namespace + "." + t.Name()
}

func (t ServiceType) String() string { return t.Name() }

// ParseServiceType accepts "<namespace>.StateService", "StateService" and
// the UI's lowerCamel "stateService". Any other prefix or casing is rejected.
func ParseServiceType(namespace, s string) (ServiceType, bool) {
	name := strings.TrimSpace(s)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		if name[:i] != namespace {
			return 0, false
		}
		name = name[i+1:]
	}
	if name == "" {
		return 0, false
	}
	for i, candidate := range serviceNames {
		if name == candidate || name == lowerFirst(candidate) {
			return ServiceType(i), true
		}
	}
	return 0, false
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
