package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Fleet Compliance API",
        "description": "Truck inspection lifecycle: wizard submissions, review workflow, reconciled history",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Inspections", "description": "Worker self-reported truck inspections"},
        {"name": "DirectOrders", "description": "Workshop-issued inspection orders"},
        {"name": "History", "description": "Reconciled chronological view and exports"},
        {"name": "ManualRequests", "description": "Inspection reminders dispatched to workers"},
        {"name": "Settings", "description": "Company auto-inspection settings"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Logged out"}
                }
            }
        },
        "/check-needed": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Whether the caller must inspect now",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections": {
            "get": {
                "tags": ["Inspections"],
                "summary": "List inspections",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "plate", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Inspections"],
                "summary": "Create inspection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateInspectionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failure"},
                    "502": {"description": "Submission failure"}
                }
            }
        },
        "/inspections/pending": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Inspections with reported problems",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/inspections/{id}": {
            "get": {
                "tags": ["Inspections"],
                "summary": "Get inspection",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/inspections/{id}/images": {
            "post": {
                "tags": ["Inspections"],
                "summary": "Attach component image",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "kind", "in": "formData", "required": true, "type": "string"},
                    {"name": "image", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "Attached"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/inspections/{id}/review": {
            "post": {
                "tags": ["Inspections"],
                "summary": "Mark inspection reviewed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Reviewed"},
                    "409": {"description": "Already reviewed"},
                    "412": {"description": "Not applicable"}
                }
            }
        },
        "/manual-requests": {
            "post": {
                "tags": ["ManualRequests"],
                "summary": "Dispatch manual inspection requests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DispatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Empty target list"}
                }
            }
        },
        "/settings/auto-inspection": {
            "get": {
                "tags": ["Settings"],
                "summary": "Read auto-inspection settings",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Toggle auto-inspection",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Updated"}
                }
            }
        },
        "/direct-orders": {
            "get": {
                "tags": ["DirectOrders"],
                "summary": "List direct orders",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["DirectOrders"],
                "summary": "Create direct order",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failure"}
                }
            }
        },
        "/direct-orders/{id}": {
            "get": {
                "tags": ["DirectOrders"],
                "summary": "Get direct order",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/direct-orders/{id}/review": {
            "patch": {
                "tags": ["DirectOrders"],
                "summary": "Mark direct order reviewed",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Reviewed"},
                    "409": {"description": "Already reviewed"}
                }
            }
        },
        "/history": {
            "get": {
                "tags": ["History"],
                "summary": "Reconciled history view",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "plate", "in": "query", "type": "string"},
                    {"name": "conductor", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string"},
                    {"name": "date_to", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/history/export": {
            "post": {
                "tags": ["History"],
                "summary": "Request history export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "CreateInspectionRequest": {
            "type": "object",
            "required": ["truck_plate", "components"],
            "properties": {
                "truck_plate": {"type": "string"},
                "general_notes": {"type": "string"},
                "components": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/ComponentInput"}
                }
            }
        },
        "ComponentInput": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["TIRES", "BRAKES", "LIGHTS", "FLUIDS", "DOCUMENTATION", "BODY"]},
                "status": {"type": "string", "enum": ["UNSET", "OK", "PROBLEM"]},
                "notes": {"type": "string"}
            }
        },
        "ReviewRequest": {
            "type": "object",
            "properties": {
                "note": {"type": "string"}
            }
        },
        "DispatchRequest": {
            "type": "object",
            "properties": {
                "send_to_all": {"type": "boolean"},
                "target_user_ids": {"type": "array", "items": {"type": "string"}},
                "message": {"type": "string"}
            }
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
