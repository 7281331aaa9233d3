package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA ADP Allotment API",
        "description": "Conflict-checked allotment of teachers, rooms and class sections",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Resources",
            "description": "Bookable teachers, rooms and class sections"
        },
        {
            "name": "Allotments",
            "description": "Conflict-checked bookings"
        },
        {
            "name": "Planner",
            "description": "Teacher allocation, PTM and activity planning"
        },
        {
            "name": "Schedules",
            "description": "Read-only schedule views and exports"
        },
        {
            "name": "Health",
            "description": "Probes and metrics"
        }
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/ready": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "Ready"
                    },
                    "503": {
                        "description": "Degraded"
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": [
                    "Health"
                ],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/api/v1/resources": {
            "get": {
                "tags": [
                    "Resources"
                ],
                "summary": "List resources",
                "parameters": [
                    {
                        "name": "kind",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "TEACHER, ROOM or CLASS_SECTION"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Resources"
                ],
                "summary": "Register resource",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RegisterResourceRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "DUPLICATE_RESOURCE",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/resources/{id}": {
            "get": {
                "tags": [
                    "Resources"
                ],
                "summary": "Get resource",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "NOT_FOUND",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "patch": {
                "tags": [
                    "Resources"
                ],
                "summary": "Rename resource",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RenameResourceRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/resources/{id}/schedule": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Resource schedule over a date range",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "First day (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Last day, inclusive"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/resources/{id}/schedule/day": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Resource schedule for one day",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "date",
                        "in": "query",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/resources/{id}/schedule/week": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Monday-to-Sunday week containing a day",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "date",
                        "in": "query",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/resources/{id}/schedule/export": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Download a resource schedule",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "First day (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Last day, inclusive"
                    },
                    {
                        "name": "format",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "csv (default) or pdf"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "File",
                        "schema": {
                            "type": "file"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ]
            }
        },
        "/api/v1/resources/{id}/utilization": {
            "get": {
                "tags": [
                    "Schedules"
                ],
                "summary": "Booked versus available minutes",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "from",
                        "in": "query",
                        "required": true,
                        "type": "string",
                        "description": "First day (YYYY-MM-DD)"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "required": false,
                        "type": "string",
                        "description": "Last day, inclusive"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/allotments": {
            "post": {
                "tags": [
                    "Allotments"
                ],
                "summary": "Request an allotment",
                "description": "Books every listed resource for the interval. The first id is the primary resource.",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/AllotmentRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "VALIDATION_ERROR or INVALID_INTERVAL",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "ALLOTMENT_CONFLICT or RACE_EXHAUSTED; data.conflicts lists blocking bookings",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "UNKNOWN_RESOURCE; data.missing lists unknown ids",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/allotments/{id}": {
            "get": {
                "tags": [
                    "Allotments"
                ],
                "summary": "Get allotment",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "NOT_FOUND",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Allotments"
                ],
                "summary": "Cancel allotment",
                "description": "Idempotent; the slot is free once this returns.",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "NOT_FOUND",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/allotments/{id}/reschedule": {
            "put": {
                "tags": [
                    "Allotments"
                ],
                "summary": "Reschedule allotment",
                "description": "On failure the original booking is unchanged.",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/RescheduleRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "NOT_FOUND",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "ALLOTMENT_CONFLICT or RACE_EXHAUSTED",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/planner/teacher-allocations": {
            "post": {
                "tags": [
                    "Planner"
                ],
                "summary": "Allocate a teacher to a class session",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TeacherAllocationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "VALIDATION_ERROR or INVALID_INTERVAL",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "ALLOTMENT_CONFLICT or RACE_EXHAUSTED; data.conflicts lists blocking bookings",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "UNKNOWN_RESOURCE; data.missing lists unknown ids",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/planner/ptms": {
            "post": {
                "tags": [
                    "Planner"
                ],
                "summary": "Schedule a parent-teacher meeting",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/PTMRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "VALIDATION_ERROR or INVALID_INTERVAL",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "ALLOTMENT_CONFLICT or RACE_EXHAUSTED; data.conflicts lists blocking bookings",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "UNKNOWN_RESOURCE; data.missing lists unknown ids",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/api/v1/planner/activities": {
            "post": {
                "tags": [
                    "Planner"
                ],
                "summary": "Plan a single or multi-day activity",
                "description": "All days are booked or none.",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ActivityRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "VALIDATION_ERROR or INVALID_INTERVAL",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "ALLOTMENT_CONFLICT or RACE_EXHAUSTED; data.conflicts lists blocking bookings",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "UNKNOWN_RESOURCE; data.missing lists unknown ids",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "Resource": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "display_name": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "updated_at": {
                    "type": "string"
                }
            }
        },
        "RegisterResourceRequest": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "kind": {
                    "type": "string"
                },
                "displayName": {
                    "type": "string"
                }
            },
            "required": [
                "id",
                "kind",
                "displayName"
            ]
        },
        "RenameResourceRequest": {
            "type": "object",
            "properties": {
                "displayName": {
                    "type": "string"
                }
            },
            "required": [
                "displayName"
            ]
        },
        "IntervalInput": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "start": {
                    "type": "string"
                },
                "end": {
                    "type": "string"
                }
            },
            "required": [
                "date",
                "start",
                "end"
            ]
        },
        "TimeInterval": {
            "type": "object",
            "properties": {
                "date": {
                    "type": "string"
                },
                "start_minute": {
                    "type": "integer"
                },
                "end_minute": {
                    "type": "integer"
                }
            }
        },
        "Booking": {
            "type": "object",
            "properties": {
                "id": {
                    "type": "string"
                },
                "resource_id": {
                    "type": "string"
                },
                "secondary_resource_ids": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "interval": {
                    "$ref": "#/definitions/TimeInterval"
                },
                "purpose": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "attendees": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "status": {
                    "type": "string"
                },
                "created_at": {
                    "type": "string"
                },
                "last_modified_at": {
                    "type": "string"
                }
            }
        },
        "AllotmentRequest": {
            "type": "object",
            "properties": {
                "resourceIds": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "interval": {
                    "$ref": "#/definitions/IntervalInput"
                },
                "purpose": {
                    "type": "string"
                },
                "category": {
                    "type": "string"
                },
                "attendees": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "resourceIds",
                "interval",
                "purpose"
            ]
        },
        "RescheduleRequest": {
            "type": "object",
            "properties": {
                "interval": {
                    "$ref": "#/definitions/IntervalInput"
                }
            },
            "required": [
                "interval"
            ]
        },
        "TeacherAllocationRequest": {
            "type": "object",
            "properties": {
                "teacherId": {
                    "type": "string"
                },
                "roomId": {
                    "type": "string"
                },
                "classSectionId": {
                    "type": "string"
                },
                "date": {
                    "type": "string"
                },
                "start": {
                    "type": "string"
                },
                "end": {
                    "type": "string"
                },
                "subject": {
                    "type": "string"
                }
            },
            "required": [
                "teacherId",
                "roomId",
                "classSectionId",
                "date",
                "start",
                "end",
                "subject"
            ]
        },
        "PTMRequest": {
            "type": "object",
            "properties": {
                "venueId": {
                    "type": "string"
                },
                "teacherIds": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "date": {
                    "type": "string"
                },
                "start": {
                    "type": "string"
                },
                "end": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "invitees": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                }
            },
            "required": [
                "venueId",
                "date",
                "start",
                "end",
                "title"
            ]
        },
        "ActivityRequest": {
            "type": "object",
            "properties": {
                "venueId": {
                    "type": "string"
                },
                "classSectionIds": {
                    "type": "array",
                    "items": {
                        "type": "string"
                    }
                },
                "startDate": {
                    "type": "string"
                },
                "endDate": {
                    "type": "string"
                },
                "start": {
                    "type": "string"
                },
                "end": {
                    "type": "string"
                },
                "title": {
                    "type": "string"
                },
                "skipWeekends": {
                    "type": "boolean"
                }
            },
            "required": [
                "venueId",
                "startDate",
                "start",
                "end",
                "title"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
