package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "EduPredict API",
        "description": "Student performance prediction service",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session info"},
        {"name": "Predictions", "description": "Grade prediction pipeline"},
        {"name": "Attendance", "description": "Attendance recording"},
        {"name": "Assessments", "description": "Submission grading"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/auth/login": {
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
        "/api/v1/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/predictions/health": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Prediction pipeline health",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/predictions/model-info": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Loaded model metadata",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/predictions/enrollments/{enrollmentId}": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Latest prediction for an enrollment",
                "parameters": [
                    {"name": "enrollmentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No predictions found"}
                }
            },
            "post": {
                "tags": ["Predictions"],
                "summary": "Generate a new prediction",
                "parameters": [
                    {"name": "enrollmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "as_of", "in": "query", "type": "string", "description": "Cutoff date (YYYY-MM-DD)"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/api/v1/predictions/enrollments/{enrollmentId}/history": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Prediction history",
                "parameters": [
                    {"name": "enrollmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/predictions/enrollments/{enrollmentId}/features": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Calculated feature vector",
                "parameters": [
                    {"name": "enrollmentId", "in": "path", "required": true, "type": "string"},
                    {"name": "as_of", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/api/v1/predictions/courses/{offeringId}": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Latest stored predictions per enrolled student",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No active enrollments"}
                }
            },
            "post": {
                "tags": ["Predictions"],
                "summary": "Generate predictions for the whole roster",
                "parameters": [
                    {"name": "offeringId", "in": "path", "required": true, "type": "string"},
                    {"name": "async", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Queued"},
                    "404": {"description": "No active enrollments"}
                }
            }
        },
        "/api/v1/predictions/at-risk": {
            "get": {
                "tags": ["Predictions"],
                "summary": "At-risk students roster",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/predictions/at-risk/export": {
            "get": {
                "tags": ["Predictions"],
                "summary": "Download at-risk roster as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Unsupported format"}
                }
            }
        },
        "/api/v1/attendance": {
            "put": {
                "tags": ["Attendance"],
                "summary": "Record attendance",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertAttendanceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/api/v1/attendance/enrollments/{enrollmentId}": {
            "get": {
                "tags": ["Attendance"],
                "summary": "List attendance records",
                "parameters": [
                    {"name": "enrollmentId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/assessments/submissions/{submissionId}/grade": {
            "post": {
                "tags": ["Assessments"],
                "summary": "Grade a submission",
                "parameters": [
                    {"name": "submissionId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeSubmissionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Submission not found"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "UpsertAttendanceRequest": {
            "type": "object",
            "properties": {
                "enrollment_id": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string", "enum": ["present", "absent", "late", "excused"]},
                "check_in_time": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["enrollment_id", "date", "status"]
        },
        "GradeSubmissionRequest": {
            "type": "object",
            "properties": {
                "score": {"type": "number"},
                "feedback": {"type": "string"}
            },
            "required": ["score"]
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
