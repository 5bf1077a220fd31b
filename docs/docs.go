package docs

import "github.com/swaggo/swag"

const docTemplate = `{
  "swagger": "2.0",
  "info": {
    "title": "Citifix API",
    "description": "Community problem reporting backend",
    "version": "1.0"
  },
  "basePath": "/",
  "securityDefinitions": {
    "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"},
    "AdminKey": {"type": "apiKey", "name": "X-Admin-Key", "in": "header"}
  },
  "paths": {
    "/healthz": {
      "get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/signup": {
      "post": {"tags": ["auth"], "summary": "Sign up", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/signin": {
      "post": {"tags": ["auth"], "summary": "Sign in", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/signout": {
      "post": {"tags": ["auth"], "summary": "Sign out", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/refresh": {
      "post": {"tags": ["auth"], "summary": "Refresh the access token", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/reset-password": {
      "post": {"tags": ["auth"], "summary": "Send a password reset email", "responses": {"200": {"description": "OK"}}}
    },
    "/api/auth/session": {
      "get": {"tags": ["auth"], "summary": "Current session", "responses": {"200": {"description": "OK"}}}
    },
    "/api/categories": {
      "get": {"tags": ["analysis"], "summary": "Category catalog", "responses": {"200": {"description": "OK"}}}
    },
    "/api/analysis": {
      "post": {"tags": ["analysis"], "summary": "Upload a photo for analysis", "responses": {"200": {"description": "OK"}}}
    },
    "/api/analysis/select": {
      "post": {"tags": ["analysis"], "summary": "Choose the category", "responses": {"200": {"description": "OK"}}}
    },
    "/api/composer": {
      "get": {"tags": ["composer"], "summary": "Report form state", "responses": {"200": {"description": "OK"}}}
    },
    "/api/composer/location": {
      "put": {"tags": ["composer"], "summary": "Offer the device location to the report form", "responses": {"200": {"description": "OK"}}},
      "delete": {"tags": ["composer"], "summary": "Drop the location fix", "responses": {"200": {"description": "OK"}}}
    },
    "/api/locate": {
      "post": {"tags": ["composer"], "summary": "Label coordinates", "responses": {"200": {"description": "OK"}}}
    },
    "/api/reports": {
      "post": {"tags": ["reports"], "summary": "Submit a report", "responses": {"200": {"description": "OK"}}},
      "get": {"tags": ["reports"], "summary": "List reports", "responses": {"200": {"description": "OK"}}}
    },
    "/api/reports/refresh": {
      "post": {"tags": ["reports"], "summary": "Reload reports from the backend", "responses": {"200": {"description": "OK"}}}
    },
    "/api/reports/{id}/vote": {
      "post": {"tags": ["reports"], "summary": "Vote for a report", "responses": {"200": {"description": "OK"}}}
    },
    "/api/stats": {
      "get": {"tags": ["reports"], "summary": "Dashboard statistics", "responses": {"200": {"description": "OK"}}}
    },
    "/api/me/reports": {
      "get": {"tags": ["reports"], "summary": "Reports submitted by the current user", "responses": {"200": {"description": "OK"}}}
    },
    "/api/reports/{id}/status": {
      "patch": {"tags": ["admin"], "summary": "Set report status", "responses": {"200": {"description": "OK"}}}
    },
    "/api/reports/{id}": {
      "delete": {"tags": ["admin"], "summary": "Delete a report", "responses": {"200": {"description": "OK"}}}
    }
  }
}`

func init() {
	swag.Register(swag.Name, &s{})
}

type s struct{}

func (s *s) ReadDoc() string {
	return docTemplate
}
