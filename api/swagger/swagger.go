package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SAT LMS API",
        "description": "Access control, progress tracking, certificates and fee gating for the SAT learning platform",
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
        {"name": "Authentication", "description": "Login, tokens and password flows"},
        {"name": "Users", "description": "User administration"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Classes", "description": "Video classes within courses"},
        {"name": "Progress", "description": "Watch gating and per-class progress"},
        {"name": "Enrollments", "description": "Enrollments and per-class access overrides"},
        {"name": "Certificates", "description": "Completion credentials"},
        {"name": "Fees", "description": "Monthly fees and defaulter gating"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {"200": {"description": "Tokens issued"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {"200": {"description": "Tokens rotated"}}
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses",
                "responses": {"200": {"description": "Course page"}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List course classes",
                "responses": {"200": {"description": "Class list"}}
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/watch/{classId}": {
            "get": {
                "tags": ["Progress"],
                "summary": "Watch class",
                "responses": {
                    "200": {"description": "Playback allowed"},
                    "403": {"description": "Locked or access blocked"},
                    "404": {"description": "Unknown or unpublished class"}
                }
            }
        },
        "/progress/{classId}": {
            "put": {
                "tags": ["Progress"],
                "summary": "Update watch progress",
                "responses": {"200": {"description": "Progress stored"}}
            }
        },
        "/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List enrollments",
                "responses": {"200": {"description": "Enrollment page"}}
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll student",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Already enrolled"}}
            }
        },
        "/enrollments/{id}/class/{classId}/toggle-lock": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Toggle per-student class lock",
                "responses": {"200": {"description": "Override sets"}}
            }
        },
        "/enrollments/{id}/bulk-class-access": {
            "put": {
                "tags": ["Enrollments"],
                "summary": "Bulk class access",
                "responses": {"200": {"description": "Override sets"}}
            }
        },
        "/certificates": {
            "get": {
                "tags": ["Certificates"],
                "summary": "List certificates",
                "responses": {"200": {"description": "Certificate page"}}
            }
        },
        "/certificates/generate": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Generate own certificate",
                "responses": {"201": {"description": "Issued or existing certificate"}, "412": {"description": "Course not completed"}}
            }
        },
        "/certificates/issue": {
            "post": {
                "tags": ["Certificates"],
                "summary": "Issue certificate",
                "responses": {"201": {"description": "Issued or existing certificate"}}
            }
        },
        "/certificates/verify/{code}": {
            "get": {
                "tags": ["Certificates"],
                "summary": "Verify certificate",
                "responses": {"200": {"description": "Verification result"}}
            }
        },
        "/fees": {
            "get": {
                "tags": ["Fees"],
                "summary": "List fee records",
                "responses": {"200": {"description": "Fee page"}}
            }
        },
        "/fees/generate": {
            "post": {
                "tags": ["Fees"],
                "summary": "Generate monthly fees",
                "responses": {"200": {"description": "Generation summary"}}
            }
        },
        "/fees/{id}/submit-proof": {
            "put": {
                "tags": ["Fees"],
                "summary": "Submit payment proof",
                "responses": {"200": {"description": "Proof recorded"}}
            }
        },
        "/courses/{id}/block-defaulters": {
            "put": {
                "tags": ["Fees"],
                "summary": "Block course defaulters",
                "responses": {"200": {"description": "Sweep summary"}}
            }
        }
    },
    "definitions": {
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
