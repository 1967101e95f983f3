package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "description": "REST API for queueing TCP connect scans of a single host and reading their reports.",
    "title": "Portwarden API",
    "license": {
      "name": "MIT",
      "url": "https://opensource.org/licenses/MIT"
    },
    "version": "1.0"
  },
  "host": "localhost:8080",
  "basePath": "/",
  "schemes": [
    "http"
  ],
  "paths": {
    "/api/v1/scans": {
      "post": {
        "consumes": ["application/json"],
        "produces": ["application/json"],
        "summary": "Create a new scan task",
        "description": "Validates a single-target scan, persists it and queues it for a background worker. Poll GET /api/v1/scans/{id} for the report.",
        "operationId": "createScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "description": "Scan request parameters",
            "name": "scanRequest",
            "in": "body",
            "required": true,
            "schema": {"$ref": "#/definitions/CreateScanRequest"}
          }
        ],
        "responses": {
          "202": {"description": "Scan accepted", "schema": {"$ref": "#/definitions/ScanAcceptedResponse"}},
          "400": {"description": "Malformed body or invalid port range", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Missing or incorrect API key", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Task could not be persisted or queued", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/api/v1/scans/{id}": {
      "get": {
        "produces": ["application/json"],
        "summary": "Get scan status and report",
        "description": "Returns the task snapshot. The report is attached once the status is completed; failed tasks carry an error.",
        "operationId": "getScan",
        "tags": ["Scans"],
        "security": [{"ApiKeyAuth": []}],
        "parameters": [
          {
            "type": "string",
            "description": "Scan Task ID (UUID v4)",
            "name": "id",
            "in": "path",
            "required": true
          }
        ],
        "responses": {
          "200": {"description": "Current task snapshot", "schema": {"$ref": "#/definitions/ScanTask"}},
          "400": {"description": "Malformed task identifier", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "401": {"description": "Missing or incorrect API key", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "404": {"description": "Unknown task", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/ErrorResponse"}},
          "500": {"description": "Task could not be loaded", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    },
    "/healthz": {
      "get": {
        "produces": ["application/json"],
        "summary": "Liveness and store health",
        "operationId": "health",
        "tags": ["Health"],
        "responses": {
          "200": {"description": "Store reachable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
          "503": {"description": "Store unavailable", "schema": {"$ref": "#/definitions/ErrorResponse"}}
        }
      }
    }
  },
  "securityDefinitions": {
    "ApiKeyAuth": {
      "type": "apiKey",
      "name": "Authorization",
      "in": "header"
    }
  },
  "definitions": {
    "CreateScanRequest": {
      "type": "object",
      "required": ["host", "ports"],
      "properties": {
        "host": {"type": "string", "example": "scanme.nmap.org"},
        "ports": {"type": "string", "example": "1-1024"},
        "concurrency": {"type": "integer", "minimum": 1, "maximum": 500, "example": 200},
        "timeout_ms": {"type": "integer", "minimum": 100, "maximum": 5000, "example": 300},
        "banner": {"type": "boolean", "example": true}
      },
      "additionalProperties": false
    },
    "ScanAcceptedResponse": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid", "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"},
        "status": {"type": "string", "enum": ["pending"], "example": "pending"}
      },
      "additionalProperties": false
    },
    "ErrorResponse": {
      "type": "object",
      "properties": {
        "error": {"type": "string", "example": "task not found"}
      },
      "additionalProperties": false
    },
    "PortResult": {
      "type": "object",
      "properties": {
        "port": {"type": "integer", "example": 22},
        "state": {"type": "string", "enum": ["Open", "Closed", "Filtered"], "example": "Open"},
        "service": {"type": "string", "example": "SSH"},
        "banner": {"type": "string", "example": "SSH-2.0-OpenSSH_9.6"},
        "error": {
          "type": "string",
          "enum": ["ConnectionRefused", "Timeout", "HostUnreachable", "SystemResource", "BannerReadFailure"]
        },
        "fingerprint": {"type": "string", "example": "ssh"}
      },
      "additionalProperties": false
    },
    "ScanReport": {
      "type": "object",
      "properties": {
        "target": {
          "type": "object",
          "properties": {"host": {"type": "string", "example": "scanme.nmap.org"}}
        },
        "address": {"type": "string", "example": "45.33.32.156"},
        "started_at": {"type": "string", "format": "date-time"},
        "finished_at": {"type": "string", "format": "date-time"},
        "open_count": {"type": "integer", "example": 2},
        "scanned_count": {"type": "integer", "example": 1024},
        "incomplete": {"type": "boolean"},
        "results": {"type": "array", "items": {"$ref": "#/definitions/PortResult"}}
      },
      "additionalProperties": false
    },
    "ScanTask": {
      "type": "object",
      "properties": {
        "id": {"type": "string", "format": "uuid", "example": "a3f5c62e-1234-4f72-a84a-1c2d3e4f5678"},
        "status": {"type": "string", "enum": ["pending", "running", "completed", "failed"], "example": "completed"},
        "host": {"type": "string", "example": "scanme.nmap.org"},
        "ports": {"type": "string", "example": "1-1024"},
        "concurrency": {"type": "integer", "example": 200},
        "timeout_ms": {"type": "integer", "example": 300},
        "banner": {"type": "boolean"},
        "report": {"$ref": "#/definitions/ScanReport"},
        "created_at": {"type": "string", "format": "date-time", "example": "2024-01-02T15:04:05Z"},
        "completed_at": {"type": "string", "format": "date-time"},
        "error": {"type": "string", "example": "cannot resolve target \"nope.invalid\": no such host"}
      },
      "additionalProperties": false
    }
  }
}
`

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

type swaggerDoc struct{}

func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}
