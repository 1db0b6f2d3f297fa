// Package docs provides the generated swagger specification for pkg/api.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/riftline/evmsync"
        },
        "license": {
            "name": "Apache 2.0",
            "url": "https://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Health check",
                "description": "Liveness check for the evmsync process",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/api.HealthResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Status"],
                "summary": "Pipeline status",
                "description": "Per-network chain tip and per-source dispatch position",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/api.StatusResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "api.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string"
                },
                "timestamp": {
                    "type": "string"
                }
            }
        },
        "api.NetworkStatusResponse": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "chain_id": {
                    "type": "integer"
                },
                "finalized_tip": {
                    "type": "integer"
                },
                "tip_known": {
                    "type": "boolean"
                }
            }
        },
        "api.SourceStatusResponse": {
            "type": "object",
            "properties": {
                "name": {
                    "type": "string"
                },
                "network": {
                    "type": "string"
                },
                "last_completed_block": {
                    "type": "integer"
                },
                "healthy": {
                    "type": "boolean"
                }
            }
        },
        "api.StatusResponse": {
            "type": "object",
            "properties": {
                "networks": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/api.NetworkStatusResponse"
                    }
                },
                "sources": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/api.SourceStatusResponse"
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported swagger doc info for pkg/api's health/status
// endpoints, registered with swag at init so httpSwagger can serve it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "evmsync API",
	Description:      "Health and status endpoints for the evmsync indexing pipeline",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
