package protoschema

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Field numbers follow cline/proto. Enums the daemon only passes through
// (ClineAsk, ClineSay, ShowMessageType) are carried as int32, which has the
// same wire encoding.

type (
	fieldProto   = descriptorpb.FieldDescriptorProto
	messageProto = descriptorpb.DescriptorProto
	enumProto    = descriptorpb.EnumDescriptorProto
	methodProto  = descriptorpb.MethodDescriptorProto
	serviceProto = descriptorpb.ServiceDescriptorProto
)

func scalar(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *fieldProto {
	return &fieldProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Type:   typ.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

func str(name string, num int32) *fieldProto {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_STRING)
}

func boolean(name string, num int32) *fieldProto {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_BOOL)
}

func int32Field(name string, num int32) *fieldProto {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_INT32)
}

func int64Field(name string, num int32) *fieldProto {
	return scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_INT64)
}

func msg(name string, num int32, typeName string) *fieldProto {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func enumField(name string, num int32, typeName string) *fieldProto {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_ENUM)
	f.TypeName = proto.String(typeName)
	return f
}

func repeated(f *fieldProto) *fieldProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}

func message(name string, fields ...*fieldProto) *messageProto {
	return &messageProto{Name: proto.String(name), Field: fields}
}

// mapEntry declares the synthetic entry type behind a map<string, V> field.
func mapEntry(name string, value *fieldProto) *messageProto {
	m := message(name, str("key", 1), value)
	m.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	return m
}

func enum(name string, values ...string) *enumProto {
	e := &enumProto{Name: proto.String(name)}
	for i, v := range values {
		e.Value = append(e.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return e
}

func rpc(name, in, out string) *methodProto {
	return &methodProto{
		Name:       proto.String(name),
		InputType:  proto.String(in),
		OutputType: proto.String(out),
	}
}

func streamRPC(name, in, out string) *methodProto {
	m := rpc(name, in, out)
	m.ServerStreaming = proto.Bool(true)
	return m
}

func service(name string, methods ...*methodProto) *serviceProto {
	return &serviceProto{Name: proto.String(name), Method: methods}
}

type fileDef struct {
	name     string
	pkg      string
	deps     []string
	enums    []*enumProto
	messages []*messageProto
	services []*serviceProto
}

func (f fileDef) proto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        proto.String(f.name),
		Package:     proto.String(f.pkg),
		Syntax:      proto.String("proto3"),
		Dependency:  f.deps,
		EnumType:    f.enums,
		MessageType: f.messages,
		Service:     f.services,
	}
}

const (
	common       = "cline/common.proto"
	metadata     = ".cline.Metadata"
	emptyRequest = ".cline.EmptyRequest"
	empty        = ".cline.Empty"
)

func fileProtos() []*descriptorpb.FileDescriptorProto {
	defs := []fileDef{
		{
			name: common,
			pkg:  CorePackage,
			messages: []*messageProto{
				message("Metadata"),
				message("EmptyRequest", msg("metadata", 1, metadata)),
				message("Empty"),
				message("StringRequest", msg("metadata", 1, metadata), str("value", 2)),
				message("String", str("value", 1)),
			},
		},
		{
			name:     "cline/state.proto",
			pkg:      CorePackage,
			deps:     []string{common},
			messages: []*messageProto{message("State", str("state_json", 1))},
			services: []*serviceProto{service("StateService",
				rpc("getLatestState", emptyRequest, ".cline.State"),
				streamRPC("subscribeToState", emptyRequest, ".cline.State"),
			)},
		},
		{
			name:  "cline/ui.proto",
			pkg:   CorePackage,
			deps:  []string{common},
			enums: []*enumProto{enum("ClineMessageType", "ASK", "SAY")},
			messages: []*messageProto{message("ClineMessage",
				int64Field("ts", 1),
				enumField("type", 2, ".cline.ClineMessageType"),
				int32Field("ask", 3),
				int32Field("say", 4),
				str("text", 5),
				str("reasoning", 6),
				repeated(str("images", 7)),
				repeated(str("files", 8)),
				boolean("partial", 9),
				str("last_checkpoint_hash", 10),
				boolean("is_checkpoint_checked_out", 11),
				boolean("is_operation_outside_workspace", 12),
				int32Field("conversation_history_index", 13),
			)},
			services: []*serviceProto{service("UiService",
				streamRPC("subscribeToPartialMessage", emptyRequest, ".cline.ClineMessage"),
			)},
		},
		{
			name: "cline/mcp.proto",
			pkg:  CorePackage,
			deps: []string{common},
			enums: []*enumProto{enum("McpServerStatus",
				"MCP_SERVER_STATUS_DISCONNECTED",
				"MCP_SERVER_STATUS_CONNECTED",
				"MCP_SERVER_STATUS_CONNECTING",
			)},
			messages: []*messageProto{
				message("McpTool", str("name", 1), str("description", 2), str("input_schema", 3), boolean("auto_approve", 4)),
				message("McpResource", str("uri", 1), str("name", 2), str("mime_type", 3), str("description", 4)),
				message("McpResourceTemplate", str("uri_template", 1), str("name", 2), str("mime_type", 3), str("description", 4)),
				message("McpServer",
					str("name", 1),
					str("config", 2),
					enumField("status", 3, ".cline.McpServerStatus"),
					str("error", 4),
					repeated(msg("tools", 5, ".cline.McpTool")),
					repeated(msg("resources", 6, ".cline.McpResource")),
					repeated(msg("resource_templates", 7, ".cline.McpResourceTemplate")),
					boolean("disabled", 8),
					int32Field("timeout", 9),
				),
				message("McpServers", repeated(msg("mcp_servers", 1, ".cline.McpServer"))),
			},
			services: []*serviceProto{service("McpService",
				rpc("getLatestMcpServers", empty, ".cline.McpServers"),
				streamRPC("subscribeToMcpServers", emptyRequest, ".cline.McpServers"),
			)},
		},
	}
	defs = append(defs, hostFiles()...)

	out := make([]*descriptorpb.FileDescriptorProto, len(defs))
	for i, s := range defs {
		out[i] = s.proto()
	}
	return out
}

func hostFiles() []fileDef {
	deps := []string{common}
	paths := func(name string) *messageProto { return message(name, repeated(str("paths", 1))) }
	onlyMetadata := func(name string) *messageProto { return message(name, msg("metadata", 1, metadata)) }

	return []fileDef{
		{
			name: "host/window.proto",
			pkg:  HostPackage,
			deps: deps,
			messages: []*messageProto{
				message("ShowTextDocumentOptions", boolean("preview", 1), boolean("preserve_focus", 2), int32Field("view_column", 3)),
				message("ShowTextDocumentRequest", msg("metadata", 1, metadata), str("path", 2), msg("options", 3, ".host.ShowTextDocumentOptions")),
				message("TextEditorInfo", str("document_path", 1), int32Field("view_column", 2), boolean("is_active", 3)),
				message("ShowOpenDialogueFilterOption", repeated(str("files", 1))),
				message("ShowOpenDialogueRequest", msg("metadata", 1, metadata), boolean("can_select_many", 2), str("open_label", 3), msg("filters", 4, ".host.ShowOpenDialogueFilterOption")),
				paths("SelectedResources"),
				message("ShowMessageRequestOptions", repeated(str("items", 1)), boolean("modal", 2), str("detail", 3)),
				message("ShowMessageRequest", msg("metadata", 1, metadata), int32Field("type", 2), str("message", 3), msg("options", 4, ".host.ShowMessageRequestOptions")),
				message("SelectedResponse", str("selected_option", 1)),
				message("FileExtensionList", repeated(str("extensions", 1))),
				func() *messageProto {
					m := message("ShowSaveDialogOptions", str("default_path", 1),
						repeated(msg("filters", 2, ".host.ShowSaveDialogOptions.FiltersEntry")))
					m.NestedType = []*messageProto{mapEntry("FiltersEntry", msg("value", 2, ".host.FileExtensionList"))}
					return m
				}(),
				message("ShowSaveDialogRequest", msg("metadata", 1, metadata), msg("options", 2, ".host.ShowSaveDialogOptions")),
				message("ShowSaveDialogResponse", str("selected_path", 1)),
				message("ShowInputBoxRequest", msg("metadata", 1, metadata), str("title", 2), str("prompt", 3), str("value", 4)),
				message("ShowInputBoxResponse", str("response", 1)),
				message("OpenFileRequest", msg("metadata", 1, metadata), str("file_path", 2)),
				message("OpenFileResponse"),
				message("OpenSettingsRequest", msg("metadata", 1, metadata), str("query", 2)),
				message("OpenSettingsResponse"),
				onlyMetadata("GetOpenTabsRequest"),
				paths("GetOpenTabsResponse"),
				onlyMetadata("GetVisibleTabsRequest"),
				paths("GetVisibleTabsResponse"),
				onlyMetadata("GetActiveEditorRequest"),
				message("GetActiveEditorResponse", str("file_path", 1)),
			},
			services: []*serviceProto{service("WindowService",
				rpc("showTextDocument", ".host.ShowTextDocumentRequest", ".host.TextEditorInfo"),
				rpc("showOpenDialogue", ".host.ShowOpenDialogueRequest", ".host.SelectedResources"),
				rpc("showMessage", ".host.ShowMessageRequest", ".host.SelectedResponse"),
				rpc("showInputBox", ".host.ShowInputBoxRequest", ".host.ShowInputBoxResponse"),
				rpc("showSaveDialog", ".host.ShowSaveDialogRequest", ".host.ShowSaveDialogResponse"),
				rpc("openFile", ".host.OpenFileRequest", ".host.OpenFileResponse"),
				rpc("openSettings", ".host.OpenSettingsRequest", ".host.OpenSettingsResponse"),
				rpc("getOpenTabs", ".host.GetOpenTabsRequest", ".host.GetOpenTabsResponse"),
				rpc("getVisibleTabs", ".host.GetVisibleTabsRequest", ".host.GetVisibleTabsResponse"),
				rpc("getActiveEditor", ".host.GetActiveEditorRequest", ".host.GetActiveEditorResponse"),
			)},
		},
		{
			name: "host/workspace.proto",
			pkg:  HostPackage,
			deps: deps,
			messages: []*messageProto{
				message("GetWorkspacePathsRequest", msg("metadata", 1, metadata), str("id", 2)),
				message("GetWorkspacePathsResponse", str("id", 1), repeated(str("paths", 2))),
				message("SaveOpenDocumentIfDirtyRequest", msg("metadata", 1, metadata), str("file_path", 2)),
				message("SaveOpenDocumentIfDirtyResponse", boolean("was_saved", 1)),
				onlyMetadata("GetDiagnosticsRequest"),
				message("FileDiagnostics", str("file_path", 1)),
				message("GetDiagnosticsResponse", repeated(msg("file_diagnostics", 1, ".host.FileDiagnostics"))),
				message("SearchWorkspaceItemsRequest", msg("metadata", 1, metadata), str("query", 2), int32Field("limit", 3), int32Field("selected_type", 4)),
				message("SearchItem", str("path", 1), int32Field("type", 2), str("label", 3)),
				message("SearchWorkspaceItemsResponse", repeated(msg("items", 1, ".host.SearchItem"))),
				onlyMetadata("OpenProblemsPanelRequest"),
				message("OpenProblemsPanelResponse"),
				message("OpenInFileExplorerPanelRequest", msg("metadata", 1, metadata), str("path", 2)),
				message("OpenInFileExplorerPanelResponse"),
			},
			services: []*serviceProto{service("WorkspaceService",
				rpc("getWorkspacePaths", ".host.GetWorkspacePathsRequest", ".host.GetWorkspacePathsResponse"),
				rpc("saveOpenDocumentIfDirty", ".host.SaveOpenDocumentIfDirtyRequest", ".host.SaveOpenDocumentIfDirtyResponse"),
				rpc("getDiagnostics", ".host.GetDiagnosticsRequest", ".host.GetDiagnosticsResponse"),
				rpc("searchWorkspaceItems", ".host.SearchWorkspaceItemsRequest", ".host.SearchWorkspaceItemsResponse"),
				rpc("openProblemsPanel", ".host.OpenProblemsPanelRequest", ".host.OpenProblemsPanelResponse"),
				rpc("openInFileExplorerPanel", ".host.OpenInFileExplorerPanelRequest", ".host.OpenInFileExplorerPanelResponse"),
			)},
		},
		{
			name:     "host/env.proto",
			pkg:      HostPackage,
			deps:     deps,
			messages: []*messageProto{message("GetHostVersionResponse", str("platform", 1), str("version", 2), str("cline_type", 3), str("cline_version", 4))},
			services: []*serviceProto{service("EnvService",
				rpc("clipboardWriteText", ".cline.StringRequest", empty),
				rpc("clipboardReadText", emptyRequest, ".cline.String"),
				rpc("getMachineId", emptyRequest, ".cline.String"),
				rpc("getHostVersion", emptyRequest, ".host.GetHostVersionResponse"),
			)},
		},
		{
			name: "host/diff.proto",
			pkg:  HostPackage,
			deps: deps,
			messages: []*messageProto{
				message("OpenDiffRequest", msg("metadata", 1, metadata), str("path", 2), str("content", 3)),
				message("OpenDiffResponse", str("diff_id", 1)),
				message("GetDocumentTextRequest", msg("metadata", 1, metadata), str("diff_id", 2)),
				message("GetDocumentTextResponse", str("content", 1)),
				message("ReplaceTextRequest", msg("metadata", 1, metadata), str("diff_id", 2), str("content", 3), int32Field("start_line", 4), int32Field("end_line", 5)),
				message("ReplaceTextResponse"),
				message("ScrollDiffRequest", str("diff_id", 1), int32Field("line", 2)),
				message("ScrollDiffResponse"),
				message("TruncateDocumentRequest", msg("metadata", 1, metadata), str("diff_id", 2), int32Field("end_line", 3)),
				message("TruncateDocumentResponse"),
				message("SaveDocumentRequest", msg("metadata", 1, metadata), str("diff_id", 2)),
				message("SaveDocumentResponse"),
				message("CloseAllDiffsRequest"),
				message("CloseAllDiffsResponse"),
				message("ContentDiff", str("file_path", 1), str("left_content", 2), str("right_content", 3)),
				message("OpenMultiFileDiffRequest", str("title", 1), repeated(msg("diffs", 2, ".host.ContentDiff"))),
				message("OpenMultiFileDiffResponse"),
			},
			services: []*serviceProto{service("DiffService",
				rpc("openDiff", ".host.OpenDiffRequest", ".host.OpenDiffResponse"),
				rpc("getDocumentText", ".host.GetDocumentTextRequest", ".host.GetDocumentTextResponse"),
				rpc("replaceText", ".host.ReplaceTextRequest", ".host.ReplaceTextResponse"),
				rpc("scrollDiff", ".host.ScrollDiffRequest", ".host.ScrollDiffResponse"),
				rpc("truncateDocument", ".host.TruncateDocumentRequest", ".host.TruncateDocumentResponse"),
				rpc("saveDocument", ".host.SaveDocumentRequest", ".host.SaveDocumentResponse"),
				rpc("closeAllDiffs", ".host.CloseAllDiffsRequest", ".host.CloseAllDiffsResponse"),
				rpc("openMultiFileDiff", ".host.OpenMultiFileDiffRequest", ".host.OpenMultiFileDiffResponse"),
			)},
		},
		{
			name:  "host/watch.proto",
			pkg:   HostPackage,
			deps:  deps,
			enums: []*enumProto{enum("FileChangeType", "CHANGED", "DELETED")},
			messages: []*messageProto{
				message("SubscribeToFileRequest", msg("metadata", 1, metadata), str("path", 2)),
				message("FileChangeEvent", str("path", 1), enumField("type", 2, ".host.FileChangeType"), str("content", 3)),
			},
			services: []*serviceProto{service("WatchService",
				streamRPC("subscribeToFile", ".host.SubscribeToFileRequest", ".host.FileChangeEvent"),
			)},
		},
		{
			name: "host/testing.proto",
			pkg:  HostPackage,
			deps: deps,
			messages: []*messageProto{
				onlyMetadata("GetWebviewHtmlRequest"),
				message("GetWebviewHtmlResponse", str("html", 1)),
			},
			services: []*serviceProto{service("TestingService",
				rpc("getWebviewHtml", ".host.GetWebviewHtmlRequest", ".host.GetWebviewHtmlResponse"),
			)},
		},
	}
}
