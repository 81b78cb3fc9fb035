// Package docs holds the OpenAPI document served at /swagger.
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
    "paths": {
        "/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Profile"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login user",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.MessageResponse"}}
                }
            }
        },
        "/users/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Search users",
                "parameters": [
                    {"type": "string", "name": "username", "in": "query", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.DirectoryEntry"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/transactions": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "List transactions",
                "parameters": [
                    {"type": "string", "name": "cursor", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TransactionPage"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Send money",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateTransactionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TransactionRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/transactions/{reference}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Get transaction",
                "parameters": [
                    {"type": "string", "name": "reference", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.TransactionRecord"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/transactions/{reference}/iso20022": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/xml"],
                "tags": ["transactions"],
                "summary": "ISO 20022 receipt",
                "parameters": [
                    {"type": "string", "name": "reference", "in": "path", "required": true},
                    {"type": "string", "name": "message", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "XML document", "schema": {"type": "string"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/simulate-card-payment": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["funding"],
                "summary": "Simulate card payment",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FundingRequestBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TransactionRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/fundings": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["funding"],
                "summary": "Fund account",
                "parameters": [
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.FundingRequestBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.TransactionRecord"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/services.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/qr/generate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["QR"],
                "summary": "Generate QR Code",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"amount": {"type": "string"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.GeneratedQR"}}
                }
            }
        },
        "/qr/process": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["QR"],
                "summary": "Process QR Code",
                "parameters": [
                    {"name": "request", "in": "body", "required": true, "schema": {"type": "object", "properties": {"qrData": {"type": "string"}}}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.PaymentRequest"}}
                }
            }
        }
    },
    "definitions": {
        "services.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"type": "string", "example": "VALIDATION_ERROR"},
                "code": {"type": "string", "example": "AMOUNT_INVALID"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "services.RegisterRequest": {
            "type": "object",
            "required": ["username", "password", "email"],
            "properties": {
                "username": {"type": "string", "example": "alice"},
                "password": {"type": "string", "example": "password123"},
                "email": {"type": "string", "example": "alice@example.com"},
                "name": {"type": "string", "example": "Alice Doe"},
                "address": {"type": "string", "example": "1 Main St"},
                "user_type": {"type": "string", "enum": ["user", "merchant"]},
                "test_mode": {"type": "boolean", "example": true}
            }
        },
        "services.LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string", "example": "alice"},
                "password": {"type": "string", "example": "password123"}
            }
        },
        "services.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "test_mode": {"type": "boolean"}
            }
        },
        "services.GeneratedQR": {
            "type": "object",
            "properties": {
                "qrCode": {"type": "string"},
                "qrImage": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "services.PaymentRequest": {
            "type": "object",
            "properties": {
                "receiver_id": {"type": "integer", "example": 2},
                "username": {"type": "string", "example": "bob"},
                "amount": {"type": "string", "example": "12.50"},
                "currency": {"type": "string", "example": "USD"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "handlers.MessageResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string"}
            }
        },
        "handlers.CreateTransactionRequest": {
            "type": "object",
            "properties": {
                "receiver_id": {"type": "integer", "example": 2},
                "amount": {"type": "string", "example": "25.00"},
                "card_number": {"type": "string"},
                "expiry": {"type": "string", "example": "12/30"},
                "cvv": {"type": "string"},
                "idempotency_key": {"type": "string"}
            }
        },
        "handlers.FundingRequestBody": {
            "type": "object",
            "properties": {
                "card_number": {"type": "string", "example": "4242424242424242"},
                "expiry": {"type": "string", "example": "12/30"},
                "cvv": {"type": "string", "example": "123"},
                "amount": {"type": "string", "example": "50.00"},
                "idempotency_key": {"type": "string"}
            }
        },
        "models.Profile": {
            "type": "object",
            "properties": {
                "user_id": {"type": "integer"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "name": {"type": "string"},
                "address": {"type": "string"},
                "user_type": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "account_id": {"type": "integer"},
                "balance": {"type": "string", "example": "100.00"},
                "currency": {"type": "string", "example": "USD"},
                "test_mode": {"type": "boolean"}
            }
        },
        "models.DirectoryEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "username": {"type": "string"},
                "account_type": {"type": "string"}
            }
        },
        "models.TransactionRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "reference": {"type": "string", "format": "uuid"},
                "type": {"type": "string", "enum": ["funding", "transfer"]},
                "amount": {"type": "string", "example": "25.00"},
                "currency": {"type": "string"},
                "sender_account_id": {"type": "integer"},
                "receiver_account_id": {"type": "integer"},
                "sender_username": {"type": "string"},
                "receiver_username": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "completed", "failed"]},
                "failure_reason": {"type": "string"},
                "card_last4": {"type": "string"},
                "processor_reference": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"},
                "completed_at": {"type": "string", "format": "date-time"}
            }
        },
        "models.TransactionPage": {
            "type": "object",
            "properties": {
                "transactions": {"type": "array", "items": {"$ref": "#/definitions/models.TransactionRecord"}},
                "next_cursor": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "PeerPay API",
	Description:      "Peer-to-peer money transfer backend",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
