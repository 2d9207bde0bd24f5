package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SIMKARYA API",
        "description": "Research paper repository: submissions, reviews, publication catalog.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Submissions", "description": "Student paper submissions and mutation windows"},
        {"name": "Reviews", "description": "Faculty review decisions"},
        {"name": "Publications", "description": "Public catalog of published papers"},
        {"name": "Exports", "description": "Asynchronous catalog exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/submissions": {
            "get": {
                "tags": ["Submissions"],
                "summary": "List submissions",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Submissions"],
                "summary": "Submit a research paper",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "abstract", "in": "formData", "required": true, "type": "string"},
                    {"name": "authors", "in": "formData", "type": "string"},
                    {"name": "keywords", "in": "formData", "type": "string"},
                    {"name": "kind", "in": "formData", "required": true, "type": "string", "enum": ["DRAFT", "FINAL"]},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/submissions/{id}": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Get submission with window state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Submissions"],
                "summary": "Revise submission within the revision window",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "title", "in": "formData", "required": true, "type": "string"},
                    {"name": "abstract", "in": "formData", "required": true, "type": "string"},
                    {"name": "authors", "in": "formData", "type": "string"},
                    {"name": "keywords", "in": "formData", "type": "string"},
                    {"name": "kind", "in": "formData", "required": true, "type": "string", "enum": ["DRAFT", "FINAL"]},
                    {"name": "file", "in": "formData", "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Window expired or submission finalized"}
                }
            },
            "delete": {
                "tags": ["Submissions"],
                "summary": "Delete submission within the deletion window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Window expired or submission finalized"}
                }
            }
        },
        "/submissions/{id}/window": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Current mutation window state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/WindowInfo"}}
                }
            }
        },
        "/submissions/{id}/window/stream": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Window countdown as a server-sent event stream",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream of WindowInfo snapshots"}
                }
            }
        },
        "/submissions/{id}/download": {
            "get": {
                "tags": ["Submissions"],
                "summary": "Download the submitted document via signed token",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File or signed URL"}
                }
            }
        },
        "/submissions/{id}/reviews": {
            "get": {
                "tags": ["Reviews"],
                "summary": "List reviews for a submission",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Reviews"],
                "summary": "Record a faculty decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateReviewRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/publications": {
            "get": {
                "tags": ["Publications"],
                "summary": "Browse the public catalog",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "tag", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Publications"],
                "summary": "Publish an approved submission",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PublishRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/publications/{id}": {
            "delete": {
                "tags": ["Publications"],
                "summary": "Remove a publication from the catalog",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an asynchronous catalog export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        }
    },
    "definitions": {
        "Submission": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "student_id": {"type": "string"},
                "title": {"type": "string"},
                "abstract": {"type": "string"},
                "authors": {"type": "array", "items": {"type": "string"}},
                "keywords": {"type": "array", "items": {"type": "string"}},
                "kind": {"type": "string", "enum": ["DRAFT", "FINAL"]},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "file_name": {"type": "string"},
                "mime_type": {"type": "string"},
                "size_bytes": {"type": "integer"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"},
                "window": {"$ref": "#/definitions/WindowInfo"}
            }
        },
        "WindowInfo": {
            "type": "object",
            "properties": {
                "delete_remaining_seconds": {"type": "integer"},
                "revise_remaining_seconds": {"type": "integer"},
                "delete_remaining": {"type": "string"},
                "revise_remaining": {"type": "string"},
                "can_delete": {"type": "boolean"},
                "can_revise": {"type": "boolean"},
                "locked": {"type": "boolean"},
                "evaluated_at": {"type": "string"}
            }
        },
        "CreateReviewRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "comment": {"type": "string"}
            },
            "required": ["decision", "comment"]
        },
        "PublishRequest": {
            "type": "object",
            "properties": {
                "submission_id": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "tags_csv": {"type": "string"}
            },
            "required": ["submission_id"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "tag": {"type": "string"},
                "search": {"type": "string"}
            },
            "required": ["format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
