package httpapi

import (
	_ "embed"
	"encoding/json"
	"net/http"
)

//go:embed swagger.html
var swaggerHTML []byte

func (h *handler) openapi(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiJSON)
}

func (h *handler) swaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(swaggerHTML)
}

// openapiDocument builds the OpenAPI 3 description of the API once, at
// router construction.
func openapiDocument(version string) []byte {
	if version == "" {
		version = "dev"
	}

	doc := map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Job Board API",
			"description": "REST API for managing users, job postings and applications.",
			"version":     version,
		},
		"servers": []any{
			map[string]any{"url": "/"},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "JWT",
				},
			},
			"schemas": openapiSchemas(),
		},
		"paths": openapiPaths(),
	}

	b, err := json.Marshal(doc)
	if err != nil {
		// The document is a static literal; a marshal failure is a
		// programming error.
		panic(err)
	}
	return b
}

func openapiSchemas() map[string]any {
	return map[string]any{
		"Error": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind": map[string]any{
					"type": "string",
					"enum": []any{
						"bad_request", "unauthorized", "forbidden", "not_found",
						"conflict", "already_exists", "rate_limited", "internal_error",
					},
				},
				"message": map[string]any{"type": "string"},
			},
			"required": []any{"kind", "message"},
		},
		"User": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":         map[string]any{"type": "string", "format": "uuid"},
				"name":       map[string]any{"type": "string"},
				"email":      map[string]any{"type": "string", "format": "email"},
				"role":       map[string]any{"type": "string", "enum": []any{"job_seeker", "employer"}},
				"created_at": map[string]any{"type": "string", "format": "date-time"},
				"updated_at": map[string]any{"type": "string", "format": "date-time"},
			},
		},
		"Job": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":              map[string]any{"type": "string", "format": "uuid"},
				"employer_id":     map[string]any{"type": "string", "format": "uuid"},
				"title":           map[string]any{"type": "string"},
				"description":     map[string]any{"type": "string"},
				"location":        map[string]any{"type": "string"},
				"salary":          map[string]any{"type": "string"},
				"employment_type": map[string]any{"type": "string", "enum": []any{"full_time", "part_time", "contract"}},
				"posted_at":       map[string]any{"type": "string", "format": "date-time"},
				"updated_at":      map[string]any{"type": "string", "format": "date-time"},
			},
		},
		"Application": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":            map[string]any{"type": "string", "format": "uuid"},
				"job_seeker_id": map[string]any{"type": "string", "format": "uuid"},
				"job_id":        map[string]any{"type": "string", "format": "uuid"},
				"cover_letter":  map[string]any{"type": "string"},
				"resume":        map[string]any{"type": "string"},
				"status":        map[string]any{"type": "string", "enum": []any{"pending", "reviewed", "accepted", "rejected"}},
				"applied_at":    map[string]any{"type": "string", "format": "date-time"},
			},
		},
		"RegisterRequest": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":     map[string]any{"type": "string"},
				"email":    map[string]any{"type": "string", "format": "email"},
				"password": map[string]any{"type": "string", "minLength": 8},
				"role":     map[string]any{"type": "string", "enum": []any{"job_seeker", "employer"}},
			},
			"required": []any{"name", "email", "password", "role"},
		},
		"UserUpdate": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":     map[string]any{"type": "string"},
				"email":    map[string]any{"type": "string", "format": "email"},
				"password": map[string]any{"type": "string", "minLength": 8},
				"role":     map[string]any{"type": "string", "enum": []any{"job_seeker", "employer"}},
			},
		},
		"LoginRequest": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"email":    map[string]any{"type": "string", "format": "email"},
				"password": map[string]any{"type": "string"},
			},
			"required": []any{"email", "password"},
		},
		"LoginResponse": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"token":      map[string]any{"type": "string"},
				"token_type": map[string]any{"type": "string", "enum": []any{"bearer"}},
				"expires_at": map[string]any{"type": "string", "format": "date-time"},
			},
		},
		"JobRequest": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":           map[string]any{"type": "string"},
				"description":     map[string]any{"type": "string"},
				"location":        map[string]any{"type": "string"},
				"salary":          map[string]any{"type": "string"},
				"employment_type": map[string]any{"type": "string", "enum": []any{"full_time", "part_time", "contract"}},
			},
			"required": []any{"title", "description", "location", "employment_type"},
		},
		"JobUpdate": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title":           map[string]any{"type": "string"},
				"description":     map[string]any{"type": "string"},
				"location":        map[string]any{"type": "string"},
				"salary":          map[string]any{"type": "string"},
				"employment_type": map[string]any{"type": "string", "enum": []any{"full_time", "part_time", "contract"}},
			},
		},
		"ApplicationRequest": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"job_id":       map[string]any{"type": "string", "format": "uuid"},
				"cover_letter": map[string]any{"type": "string"},
				"resume":       map[string]any{"type": "string"},
			},
			"required": []any{"job_id"},
		},
		"ApplicationUpdate": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cover_letter": map[string]any{"type": "string"},
				"resume":       map[string]any{"type": "string"},
				"status":       map[string]any{"type": "string", "enum": []any{"pending", "reviewed", "accepted", "rejected"}},
			},
		},
		"UserPage":        pageSchema("User"),
		"JobPage":         pageSchema("Job"),
		"ApplicationPage": pageSchema("Application"),
		"AuditEntry": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"time":        map[string]any{"type": "string", "format": "date-time"},
				"actor":       map[string]any{"type": "string"},
				"role":        map[string]any{"type": "string"},
				"action":      map[string]any{"type": "string"},
				"resource":    map[string]any{"type": "string"},
				"status":      map[string]any{"type": "integer"},
				"trace_id":    map[string]any{"type": "string"},
				"remote_addr": map[string]any{"type": "string"},
			},
		},
		"SystemStatus": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status":            map[string]any{"type": "string"},
				"version":           map[string]any{"type": "string"},
				"backend":           map[string]any{"type": "string"},
				"started_at":        map[string]any{"type": "string", "format": "date-time"},
				"uptime_seconds":    map[string]any{"type": "integer"},
				"event_subscribers": map[string]any{"type": "integer"},
				"rows": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"users":        map[string]any{"type": "integer"},
						"jobs":         map[string]any{"type": "integer"},
						"applications": map[string]any{"type": "integer"},
					},
				},
			},
		},
	}
}

func pageSchema(item string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page":  map[string]any{"type": "integer"},
			"count": map[string]any{"type": "integer"},
			"items": map[string]any{"type": "array", "items": ref(item)},
		},
	}
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func jsonBody(schema map[string]any) map[string]any {
	return map[string]any{
		"required": true,
		"content": map[string]any{
			"application/json": map[string]any{"schema": schema},
		},
	}
}

func jsonResponse(desc string, schema map[string]any) map[string]any {
	resp := map[string]any{"description": desc}
	if schema != nil {
		resp["content"] = map[string]any{
			"application/json": map[string]any{"schema": schema},
		}
	}
	return resp
}

func errResponse(desc string) map[string]any {
	return jsonResponse(desc, ref("Error"))
}

var bearerSecurity = []any{map[string]any{"bearerAuth": []any{}}}

func idParam() map[string]any {
	return map[string]any{
		"name":     "id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string"},
	}
}

func pagingParams() []any {
	return []any{
		map[string]any{
			"name":   "limit",
			"in":     "query",
			"schema": map[string]any{"type": "integer", "default": 10, "maximum": 100},
		},
		map[string]any{
			"name":   "offset",
			"in":     "query",
			"schema": map[string]any{"type": "integer", "default": 0},
		},
	}
}

func openapiPaths() map[string]any {
	return map[string]any{
		"/v1/users": map[string]any{
			"post": map[string]any{
				"summary":     "Register a new user",
				"requestBody": jsonBody(ref("RegisterRequest")),
				"responses": map[string]any{
					"201": jsonResponse("Created", ref("User")),
					"400": errResponse("Validation failure"),
					"409": errResponse("Email already registered"),
				},
			},
			"get": map[string]any{
				"summary":    "List users",
				"parameters": pagingParams(),
				"responses": map[string]any{
					"200": jsonResponse("One page of users", ref("UserPage")),
				},
			},
		},
		"/v1/users/{id}": map[string]any{
			"get": map[string]any{
				"summary":    "Get a user",
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"200": jsonResponse("The user", ref("User")),
					"404": errResponse("Unknown user"),
				},
			},
			"put": map[string]any{
				"summary":     "Update your own profile",
				"security":    bearerSecurity,
				"parameters":  []any{idParam()},
				"requestBody": jsonBody(ref("UserUpdate")),
				"responses": map[string]any{
					"200": jsonResponse("Updated user", ref("User")),
					"400": errResponse("Validation failure"),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not your profile"),
					"409": errResponse("Email already registered"),
				},
			},
			"delete": map[string]any{
				"summary":    "Delete your own account",
				"security":   bearerSecurity,
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"204": map[string]any{"description": "Deleted"},
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not your profile"),
					"409": errResponse("Employer still has postings"),
				},
			},
		},
		"/v1/auth/login": map[string]any{
			"post": map[string]any{
				"summary":     "Exchange credentials for a bearer token",
				"requestBody": jsonBody(ref("LoginRequest")),
				"responses": map[string]any{
					"200": jsonResponse("Session token", ref("LoginResponse")),
					"401": errResponse("Invalid credentials"),
				},
			},
		},
		"/v1/jobs": map[string]any{
			"post": map[string]any{
				"summary":     "Post a job (employers only)",
				"security":    bearerSecurity,
				"requestBody": jsonBody(ref("JobRequest")),
				"responses": map[string]any{
					"201": jsonResponse("Created", ref("Job")),
					"400": errResponse("Validation failure"),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not an employer"),
				},
			},
			"get": map[string]any{
				"summary": "List postings",
				"parameters": append(pagingParams(), map[string]any{
					"name":   "employer_id",
					"in":     "query",
					"schema": map[string]any{"type": "string"},
				}),
				"responses": map[string]any{
					"200": jsonResponse("One page of postings", ref("JobPage")),
				},
			},
		},
		"/v1/jobs/{id}": map[string]any{
			"get": map[string]any{
				"summary":    "Get a posting",
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"200": jsonResponse("The posting", ref("Job")),
					"404": errResponse("Unknown posting"),
				},
			},
			"put": map[string]any{
				"summary":     "Update a posting (owner only)",
				"security":    bearerSecurity,
				"parameters":  []any{idParam()},
				"requestBody": jsonBody(ref("JobUpdate")),
				"responses": map[string]any{
					"200": jsonResponse("Updated posting", ref("Job")),
					"400": errResponse("Validation failure"),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not the posting employer"),
					"404": errResponse("Unknown posting"),
				},
			},
			"delete": map[string]any{
				"summary":    "Delete a posting (owner only)",
				"security":   bearerSecurity,
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"204": map[string]any{"description": "Deleted"},
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not the posting employer"),
					"404": errResponse("Unknown posting"),
				},
			},
		},
		"/v1/applications": map[string]any{
			"post": map[string]any{
				"summary":     "Apply to a posting (job seekers only)",
				"security":    bearerSecurity,
				"requestBody": jsonBody(ref("ApplicationRequest")),
				"responses": map[string]any{
					"201": jsonResponse("Created", ref("Application")),
					"400": errResponse("Validation failure"),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not a job seeker"),
					"404": errResponse("Unknown posting"),
					"409": errResponse("Already applied"),
				},
			},
			"get": map[string]any{
				"summary":  "List applications visible to you",
				"security": bearerSecurity,
				"parameters": append(pagingParams(), map[string]any{
					"name":   "job_id",
					"in":     "query",
					"schema": map[string]any{"type": "string"},
				}),
				"responses": map[string]any{
					"200": jsonResponse("One page of applications", ref("ApplicationPage")),
					"401": errResponse("Missing or invalid token"),
				},
			},
		},
		"/v1/applications/{id}": map[string]any{
			"get": map[string]any{
				"summary":    "Get an application (applicant or posting employer)",
				"security":   bearerSecurity,
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"200": jsonResponse("The application", ref("Application")),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not yours to see"),
					"404": errResponse("Unknown application"),
				},
			},
			"put": map[string]any{
				"summary":     "Revise content (applicant) or move status (posting employer)",
				"security":    bearerSecurity,
				"parameters":  []any{idParam()},
				"requestBody": jsonBody(ref("ApplicationUpdate")),
				"responses": map[string]any{
					"200": jsonResponse("Updated application", ref("Application")),
					"400": errResponse("Validation failure"),
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not yours to change"),
					"404": errResponse("Unknown application"),
				},
			},
			"delete": map[string]any{
				"summary":    "Withdraw an application (applicant only)",
				"security":   bearerSecurity,
				"parameters": []any{idParam()},
				"responses": map[string]any{
					"204": map[string]any{"description": "Withdrawn"},
					"401": errResponse("Missing or invalid token"),
					"403": errResponse("Not the applicant"),
					"404": errResponse("Unknown application"),
				},
			},
		},
		"/v1/events": map[string]any{
			"get": map[string]any{
				"summary":     "Websocket stream of job lifecycle events",
				"description": "Upgrades to a websocket; each event arrives as one JSON message {type, at, data}.",
				"responses": map[string]any{
					"101": map[string]any{"description": "Switching protocols"},
				},
			},
		},
		"/v1/system/status": map[string]any{
			"get": map[string]any{
				"summary":  "System status",
				"security": bearerSecurity,
				"responses": map[string]any{
					"200": jsonResponse("Status document", ref("SystemStatus")),
					"401": errResponse("Missing or invalid token"),
				},
			},
		},
		"/v1/audit": map[string]any{
			"get": map[string]any{
				"summary":  "Recent audit entries, optionally filtered by exact field match",
				"security": bearerSecurity,
				"parameters": []any{
					map[string]any{"name": "field", "in": "query", "schema": map[string]any{"type": "string"}},
					map[string]any{"name": "value", "in": "query", "schema": map[string]any{"type": "string"}},
					map[string]any{"name": "limit", "in": "query", "schema": map[string]any{"type": "integer"}},
				},
				"responses": map[string]any{
					"200": jsonResponse("Entries, newest first", map[string]any{
						"type": "array", "items": ref("AuditEntry"),
					}),
					"401": errResponse("Missing or invalid token"),
				},
			},
		},
		"/healthz": map[string]any{
			"get": map[string]any{
				"summary": "Liveness probe",
				"responses": map[string]any{
					"200": jsonResponse("Alive", map[string]any{
						"type": "object",
						"properties": map[string]any{
							"status":  map[string]any{"type": "string"},
							"version": map[string]any{"type": "string"},
						},
					}),
				},
			},
		},
		"/readyz": map[string]any{
			"get": map[string]any{
				"summary": "Readiness probe (fails when the database is unreachable)",
				"responses": map[string]any{
					"200": jsonResponse("Ready", map[string]any{
						"type": "object",
						"properties": map[string]any{
							"status": map[string]any{"type": "string"},
						},
					}),
					"503": map[string]any{"description": "Database unreachable"},
				},
			},
		},
		"/metrics": map[string]any{
			"get": map[string]any{
				"summary": "Prometheus metrics",
				"responses": map[string]any{
					"200": map[string]any{"description": "Prometheus text exposition"},
				},
			},
		},
	}
}
