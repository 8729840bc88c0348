package api

type object = map[string]any

func jsonBody(schema string) object {
	return object{"content": object{"application/json": object{
		"schema": object{"$ref": "#/components/schemas/" + schema},
	}}}
}

func errorResponse(desc string) object {
	return object{"description": desc, "content": object{"application/json": object{
		"schema": object{"$ref": "#/components/schemas/Error"},
	}}}
}

// protectedOp describes a /v1 operation and its pipeline error responses.
func protectedOp(summary, reqSchema, respSchema string) object {
	op := object{
		"summary":  summary,
		"security": []object{{"ApiKeyAuth": []string{}}},
		"responses": object{
			"200": object{"description": "OK", "content": jsonBody(respSchema)["content"]},
			"401": errorResponse("x-api-key missing"),
			"403": errorResponse("invalid API key or CORS origin rejected"),
			"429": errorResponse("rate limit exceeded"),
			"503": errorResponse("tenant directory unavailable"),
		},
	}
	if reqSchema != "" {
		op["requestBody"] = jsonBody(reqSchema)
	}
	return op
}

func str() object     { return object{"type": "string"} }
func integer() object { return object{"type": "integer"} }

func openAPIDocument(service, version string) object {
	return object{
		"openapi": "3.0.3",
		"info":    object{"title": service, "version": version},
		"paths": object{
			"/v1/ping":           object{"get": protectedOp("Tenant-scoped ping", "", "Ping")},
			"/v1/debug/whoami":   object{"get": protectedOp("Resolved tenant and its configuration", "", "WhoAmI")},
			"/v1/analyze":        object{"post": protectedOp("Basic text statistics", "AnalyzeRequest", "AnalyzeResponse")},
			"/v1/vision/analyze": object{"post": protectedOp("Image size and format", "VisionAnalyzeRequest", "VisionAnalyzeResponse")},
			"/health":            object{"get": object{"summary": "Liveness", "responses": object{"200": object{"description": "OK"}}}},
			"/readiness": object{"get": object{"summary": "Readiness", "responses": object{
				"200": object{"description": "ready"},
				"503": object{"description": "a dependency is unavailable"},
			}}},
		},
		"components": object{
			"securitySchemes": object{
				"ApiKeyAuth": object{"type": "apiKey", "in": "header", "name": "x-api-key"},
			},
			"schemas": object{
				"Error": object{"type": "object", "required": []string{"detail"}, "properties": object{
					"detail": str(), "tenant": str(),
				}},
				"Ping": object{"type": "object", "properties": object{"message": str()}},
				"WhoAmI": object{"type": "object", "properties": object{
					"tenant_id": str(), "tenant_name": str(),
					"features": object{"type": "object"}, "limits": object{"type": "object"}, "models": object{"type": "object"},
				}},
				"AnalyzeRequest":  object{"type": "object", "required": []string{"text"}, "properties": object{"text": str()}},
				"AnalyzeResponse": object{"type": "object", "properties": object{"length": integer(), "word_count": integer(), "preview": str()}},
				"VisionAnalyzeRequest": object{"type": "object", "required": []string{"image_base64"}, "properties": object{
					"image_base64": str(),
				}},
				"VisionAnalyzeResponse": object{"type": "object", "properties": object{"size_bytes": integer(), "format": str()}},
			},
		},
	}
}
