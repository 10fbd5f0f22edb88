// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["auth"],
                "summary": "Register a trader account",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Token"}},
                    "409": {"description": "Email or username taken", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["auth"],
                "summary": "Exchange credentials for a bearer token",
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Token"}},
                    "401": {"description": "Bad credentials", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}}}
            }
        },
        "/trades": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "List visible trades, newest entry first",
                "parameters": [
                    {"in": "query", "name": "skip", "type": "integer", "default": 0},
                    {"in": "query", "name": "limit", "type": "integer", "default": 20, "minimum": 1, "maximum": 100},
                    {"in": "query", "name": "status", "type": "string", "enum": ["OPEN", "CLOSED"]},
                    {"in": "query", "name": "symbol", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TradePage"}}}
            },
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Open a trade",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CreateTradeRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Trade"}},
                    "403": {"description": "Admins cannot trade", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "422": {"description": "Invalid trade", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/trades/export": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Download visible trades as CSV",
                "produces": ["text/csv"],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/trades/import": {
            "post": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Upload trades as CSV",
                "consumes": ["multipart/form-data"],
                "parameters": [{"in": "formData", "name": "file", "type": "file", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ImportResult"}}}
            }
        },
        "/trades/{id}": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Get a trade",
                "parameters": [{"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Trade"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "put": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Edit a trade",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateTradeRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Trade"}}}
            },
            "delete": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Delete a trade",
                "parameters": [{"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/trades/{id}/close": {
            "patch": {
                "security": [{"Bearer": []}],
                "tags": ["trades"],
                "summary": "Close an open trade and realize its PnL",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "format": "uuid", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/CloseTradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Trade"}},
                    "400": {"description": "Already closed", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/analytics/summary": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["analytics"],
                "summary": "Platform summary for admins, personal summary for traders",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/analytics/chart": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["analytics"],
                "summary": "Cumulative realized PnL series",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/analytics/admin/top-trades": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["analytics"],
                "summary": "Most profitable closed trades",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TradePage"}},
                    "403": {"description": "Admin only", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/admin/stats": {
            "get": {
                "security": [{"Bearer": []}],
                "tags": ["admin"],
                "summary": "Connection pool and runtime statistics",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/cache/{pattern}": {
            "delete": {
                "security": [{"Bearer": []}],
                "tags": ["admin"],
                "summary": "Drop cached analytics matching a glob pattern",
                "parameters": [{"in": "path", "name": "pattern", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "username": {"type": "string"}, "password": {"type": "string"}}
        },
        "LoginRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "Token": {
            "type": "object",
            "properties": {"access_token": {"type": "string"}, "token_type": {"type": "string"}}
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "email": {"type": "string"},
                "username": {"type": "string"},
                "role": {"type": "string", "enum": ["ADMIN", "TRADER"]}
            }
        },
        "CreateTradeRequest": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "side": {"type": "string", "enum": ["LONG", "SHORT"]},
                "quantity": {"type": "number"},
                "entry_price": {"type": "number"},
                "entry_date": {"type": "string", "format": "date-time"}
            }
        },
        "UpdateTradeRequest": {
            "type": "object",
            "properties": {
                "symbol": {"type": "string"},
                "side": {"type": "string", "enum": ["LONG", "SHORT"]},
                "quantity": {"type": "number"},
                "entry_price": {"type": "number"},
                "entry_date": {"type": "string", "format": "date-time"},
                "exit_price": {"type": "number"},
                "exit_date": {"type": "string", "format": "date-time"},
                "status": {"type": "string", "enum": ["OPEN", "CLOSED"]}
            }
        },
        "CloseTradeRequest": {
            "type": "object",
            "properties": {"exit_price": {"type": "number"}, "exit_date": {"type": "string", "format": "date-time"}}
        },
        "Trade": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "format": "uuid"},
                "user_id": {"type": "string", "format": "uuid"},
                "symbol": {"type": "string"},
                "side": {"type": "string"},
                "quantity": {"type": "number"},
                "entry_price": {"type": "number"},
                "entry_date": {"type": "string", "format": "date-time"},
                "exit_price": {"type": "number"},
                "exit_date": {"type": "string", "format": "date-time"},
                "status": {"type": "string"},
                "pnl": {"type": "number"}
            }
        },
        "TradePage": {
            "type": "object",
            "properties": {
                "total": {"type": "integer"},
                "page": {"type": "integer"},
                "limit": {"type": "integer"},
                "data": {"type": "array", "items": {"$ref": "#/definitions/Trade"}}
            }
        },
        "ImportResult": {
            "type": "object",
            "properties": {
                "imported": {"type": "integer"},
                "rejected": {"type": "array", "items": {"type": "object", "properties": {"line": {"type": "integer"}, "error": {"type": "string"}}}}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Tradelog API",
	Description:      "Trade journal with realized PnL analytics",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
