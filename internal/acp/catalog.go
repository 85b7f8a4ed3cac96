package acp

// toolCatalog is the fixed set of tools exposed to agents, matching
// toolHandlers one-for-one.
var toolCatalog = []map[string]any{
	{
		"name":        "list_sessions",
		"description": "List every known annotation session.",
		"inputSchema": objectSchema(nil, nil),
	},
	{
		"name":        "get_session",
		"description": "Get one session and its annotations.",
		"inputSchema": objectSchema(map[string]any{
			"sessionId": stringProp("Session identifier."),
		}, []string{"sessionId"}),
	},
	{
		"name":        "get_pending",
		"description": "List pending annotations for one session.",
		"inputSchema": objectSchema(map[string]any{
			"sessionId": stringProp("Session identifier."),
		}, []string{"sessionId"}),
	},
	{
		"name":        "get_all_pending",
		"description": "List pending annotations across every session.",
		"inputSchema": objectSchema(nil, nil),
	},
	{
		"name":        "acknowledge",
		"description": "Mark an annotation as acknowledged.",
		"inputSchema": objectSchema(map[string]any{
			"annotationId": stringProp("Annotation identifier."),
		}, []string{"annotationId"}),
	},
	{
		"name":        "resolve",
		"description": "Mark an annotation as resolved.",
		"inputSchema": objectSchema(map[string]any{
			"annotationId": stringProp("Annotation identifier."),
			"summary":      stringProp("Optional resolution summary; recorded as a thread reply."),
			"resolvedBy":   stringProp("Who resolved it: human or agent. Defaults to agent."),
		}, []string{"annotationId"}),
	},
	{
		"name":        "dismiss",
		"description": "Mark an annotation as dismissed.",
		"inputSchema": objectSchema(map[string]any{
			"annotationId": stringProp("Annotation identifier."),
			"reason":       stringProp("Required reason for dismissal; recorded as a thread reply."),
			"resolvedBy":   stringProp("Who dismissed it: human or agent. Defaults to agent."),
		}, []string{"annotationId", "reason"}),
	},
	{
		"name":        "reply",
		"description": "Append a reply to an annotation's thread.",
		"inputSchema": objectSchema(map[string]any{
			"annotationId": stringProp("Annotation identifier."),
			"content":      stringProp("Reply body."),
		}, []string{"annotationId", "content"}),
	},
	{
		"name":        "watch_annotations",
		"description": "Block until one or more new pending annotations appear (any session), then return the batch. Returns an empty batch if none appear before the timeout.",
		"inputSchema": objectSchema(map[string]any{
			"timeout": map[string]any{"type": "integer", "description": "Max seconds to wait. Defaults to 30."},
		}, nil),
	},
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
	}
	if properties != nil {
		schema["properties"] = properties
	} else {
		schema["properties"] = map[string]any{}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
