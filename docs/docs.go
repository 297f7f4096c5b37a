// Package docs registers the OpenAPI document served under /docs.
// Keep it in sync with the handler annotations; `swag init -g cmd/api/main.go`
// regenerates it.
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
        "/channels": {
            "get": {
                "description": "Sessions and engaged sessions per channel between two dates",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Channel report",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Start date (YYYY-MM-DD)",
                        "name": "from",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "End date (YYYY-MM-DD)",
                        "name": "to",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Breakdown: channel, day, source_medium or source_category",
                        "name": "group_by",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.ChannelReportResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/classify": {
            "post": {
                "description": "Resolve the source category and default channel group",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Classify a source and medium",
                "parameters": [
                    {
                        "description": "Source and medium",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.ClassifyRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.ClassifyResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events": {
            "post": {
                "description": "Assign a fingerprint event id to a raw GA4 event and publish it to the queue",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "events"
                ],
                "summary": "Publish a single event",
                "parameters": [
                    {
                        "description": "Raw GA4 event",
                        "name": "event",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.PublishEventRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/dto.PublishEventResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/events/bulk": {
            "post": {
                "description": "Publish up to 1000 raw GA4 events. Invalid events are rejected individually.",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "events"
                ],
                "summary": "Publish multiple events",
                "parameters": [
                    {
                        "description": "Raw GA4 events",
                        "name": "events",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/dto.PublishEventsBulkRequest"
                        }
                    }
                ],
                "responses": {
                    "202": {
                        "description": "Accepted",
                        "schema": {
                            "$ref": "#/definitions/dto.PublishBulkEventsResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "description": "Probe every registered dependency",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "type": "object",
                            "additionalProperties": {
                                "type": "string"
                            }
                        }
                    }
                }
            }
        },
        "/sessions/run": {
            "post": {
                "description": "Build attributed sessions from the configured source and write them to the sink",
                "consumes": [
                    "application/json"
                ],
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "sessions"
                ],
                "summary": "Build sessions",
                "parameters": [
                    {
                        "description": "Run options",
                        "name": "request",
                        "in": "body",
                        "schema": {
                            "$ref": "#/definitions/dto.RunSessionsRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/dto.RunSessionsResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "422": {
                        "description": "Unprocessable Entity",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {
                            "$ref": "#/definitions/dto.ErrorResponse"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "dto.ChannelGroupData": {
            "type": "object",
            "properties": {
                "channel": {
                    "type": "string",
                    "example": "Organic Search"
                },
                "engaged_sessions": {
                    "type": "integer",
                    "example": 900
                },
                "group_value": {
                    "type": "string",
                    "example": "google / organic"
                },
                "sessions": {
                    "type": "integer",
                    "example": 1500
                }
            }
        },
        "dto.ChannelReportResponse": {
            "type": "object",
            "properties": {
                "from": {
                    "type": "string",
                    "example": "2024-03-01"
                },
                "group_by": {
                    "type": "string",
                    "example": "source_medium"
                },
                "groups": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ChannelGroupData"
                    }
                },
                "to": {
                    "type": "string",
                    "example": "2024-03-31"
                },
                "total_sessions": {
                    "type": "integer",
                    "example": 5000
                },
                "unique_users": {
                    "type": "integer",
                    "example": 2500
                }
            }
        },
        "dto.ClassifyRequest": {
            "type": "object",
            "properties": {
                "medium": {
                    "type": "string",
                    "example": "cpc"
                },
                "source": {
                    "type": "string",
                    "example": "google"
                }
            }
        },
        "dto.ClassifyResponse": {
            "type": "object",
            "properties": {
                "channel": {
                    "type": "string",
                    "example": "Paid Search"
                },
                "medium": {
                    "type": "string",
                    "example": "cpc"
                },
                "source": {
                    "type": "string",
                    "example": "google"
                },
                "source_category": {
                    "type": "string",
                    "example": "SOURCE_CATEGORY_SEARCH"
                }
            }
        },
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "string",
                    "example": "validation_error"
                },
                "message": {
                    "type": "string",
                    "example": "event_name is required"
                }
            }
        },
        "dto.ParamRequest": {
            "type": "object",
            "required": [
                "key"
            ],
            "properties": {
                "double_value": {
                    "type": "number"
                },
                "float_value": {
                    "type": "number"
                },
                "int_value": {
                    "type": "integer",
                    "example": 1709316000
                },
                "key": {
                    "type": "string",
                    "example": "ga_session_id"
                },
                "string_value": {
                    "type": "string",
                    "example": "https://example.com/?utm_source=newsletter"
                }
            }
        },
        "dto.PublishBulkEventsResponse": {
            "type": "object",
            "properties": {
                "accepted": {
                    "type": "integer",
                    "example": 5
                },
                "errors": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    },
                    "example": [
                        "event 3: event_timestamp is in the future"
                    ]
                },
                "event_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "rejected": {
                    "type": "integer",
                    "example": 0
                }
            }
        },
        "dto.PublishEventRequest": {
            "type": "object",
            "required": [
                "event_name",
                "event_timestamp",
                "user_pseudo_id"
            ],
            "properties": {
                "columns": {
                    "type": "object",
                    "additionalProperties": {}
                },
                "event_name": {
                    "type": "string",
                    "example": "page_view"
                },
                "event_params": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ParamRequest"
                    }
                },
                "event_timestamp": {
                    "type": "integer",
                    "example": 1709316000000000
                },
                "user_id": {
                    "type": "string",
                    "example": "member_42"
                },
                "user_properties": {
                    "type": "array",
                    "items": {
                        "$ref": "#/definitions/dto.ParamRequest"
                    }
                },
                "user_pseudo_id": {
                    "type": "string",
                    "example": "1234567.1709316000"
                }
            }
        },
        "dto.PublishEventResponse": {
            "type": "object",
            "properties": {
                "event_id": {
                    "type": "string",
                    "example": "-4611686018427387904"
                },
                "session_id": {
                    "type": "string",
                    "example": "8070450532247928832"
                },
                "status": {
                    "type": "string",
                    "example": "accepted"
                }
            }
        },
        "dto.PublishEventsBulkRequest": {
            "type": "object",
            "required": [
                "events"
            ],
            "properties": {
                "events": {
                    "type": "array",
                    "maxItems": 1000,
                    "minItems": 1,
                    "items": {
                        "$ref": "#/definitions/dto.PublishEventRequest"
                    }
                }
            }
        },
        "dto.RunSessionsRequest": {
            "type": "object",
            "properties": {
                "incremental": {
                    "type": "boolean",
                    "example": true
                }
            }
        },
        "dto.RunSessionsResponse": {
            "type": "object",
            "properties": {
                "duration_ms": {
                    "type": "integer",
                    "example": 420
                },
                "events": {
                    "type": "integer",
                    "example": 1200
                },
                "run_id": {
                    "type": "string",
                    "example": "0b7e6c1e-3c1b-4f43-9a54-5f0f4f3c1a2b"
                },
                "sessions": {
                    "type": "integer",
                    "example": 310
                },
                "table": {
                    "type": "string",
                    "example": "dataform_staging.sessions"
                },
                "written": {
                    "type": "integer",
                    "example": 310
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "GA4 Sessions API",
	Description:      "Raw GA4 event collection, session attribution runs and channel reports",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
