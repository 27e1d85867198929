package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Substitute API",
        "description": "Assigns substitute teachers to the periods of absent teachers.",
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
        {"name": "Substitutions", "description": "Substitution runs and reports"},
        {"name": "Timetable", "description": "Timetable import and export"},
        {"name": "Health", "description": "Probes"}
    ],
    "paths": {
        "/substitutions": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Assign substitutes for absent teachers",
                "description": "Absent teachers are processed in request order. Unknown names are reported, never fatal.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RunSubstitutionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/SubstitutionReportEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{id}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Get a substitution run report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/SubstitutionReportEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/substitutions/{id}/export": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Download a run report",
                "produces": ["text/csv", "application/pdf", "text/plain"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "txt"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}}
                }
            }
        },
        "/substitutions/{id}/exports": {
            "post": {
                "tags": ["Substitutions"],
                "summary": "Store a run report and return a signed download link",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf", "txt"], "default": "csv"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ExportLinkEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Substitutions"],
                "summary": "Download a stored report through a signed link",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}},
                    "401": {"description": "Invalid link"},
                    "403": {"description": "Expired link"}
                }
            }
        },
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Download the current timetable",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "text", "yaml"], "default": "yaml"}
                ],
                "responses": {
                    "200": {"description": "Timetable file", "schema": {"type": "file"}}
                }
            },
            "put": {
                "tags": ["Timetable"],
                "summary": "Replace the timetable",
                "consumes": ["text/plain"],
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["csv", "text", "yaml"]},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "string"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Malformed timetable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "RunSubstitutionRequest": {
            "type": "object",
            "properties": {
                "absentTeachers": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["absentTeachers"]
        },
        "AbsenceReport": {
            "type": "object",
            "properties": {
                "requested_name": {"type": "string"},
                "teacher_id": {"type": "string"},
                "teacher_name": {"type": "string"},
                "status": {"type": "string", "enum": ["processed", "unknown", "duplicate", "precondition_failed"]},
                "assigned": {"type": "integer"},
                "uncovered": {"type": "integer"},
                "error": {"type": "string"}
            }
        },
        "SubstitutionAssignment": {
            "type": "object",
            "properties": {
                "sequence": {"type": "integer"},
                "outcome": {"type": "string", "enum": ["assigned", "no_substitute"]},
                "absentTeacher": {"type": "string"},
                "substituteId": {"type": "string"},
                "substituteName": {"type": "string"},
                "className": {"type": "string"},
                "day": {"type": "string"},
                "period": {"type": "string"},
                "reason": {"type": "string"}
            }
        },
        "SubstitutionReport": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "exclusivity": {"type": "string"},
                "assigned": {"type": "integer"},
                "uncovered": {"type": "integer"},
                "absences": {"type": "array", "items": {"$ref": "#/definitions/AbsenceReport"}},
                "assignments": {"type": "array", "items": {"$ref": "#/definitions/SubstitutionAssignment"}},
                "createdAt": {"type": "string", "format": "date-time"}
            }
        },
        "ExportLink": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "format": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
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
                "meta": {"type": "object"}
            }
        },
        "SubstitutionReportEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/SubstitutionReport"},
                "error": {"$ref": "#/definitions/APIError"}
            }
        },
        "ExportLinkEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ExportLink"},
                "error": {"$ref": "#/definitions/APIError"}
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
