// Package http provides the HTTP handlers and middleware for the class
// scheduler API.
//
// The router exposes the following endpoints:
//   - POST /rules, GET /rules/{id}, DELETE /rules/{id}: recurrence rule
//     management exchanging the `ruleRequest`/`ruleResponse` payloads
//     defined in rule_handler.go.
//   - POST /rules/{id}/generate: expands the rule over the requested
//     horizon and returns the newly created session instances. Safe to
//     retry; days that already hold an instance are skipped.
//   - POST /rules/{id}/pause, /resume, /end: rule lifecycle switches.
//   - GET /sessions, POST /sessions, GET /sessions/{id}: session instance
//     listing, standalone creation and retrieval.
//   - POST /sessions/{id}/start, /end, /cancel: status transitions.
//   - POST /activations, DELETE /activations/{id}, POST /activations/sweep:
//     grant registry endpoints for payment/admin callers.
//   - GET /access/decision?teacher_id=...: evaluates whether the teacher
//     may use the online-class feature right now. Denials are 200
//     responses carrying the decision payload.
//   - POST /access/tokens: evaluates access and, when granted, returns a
//     signed join credential bounded by the entitlement.
//
// Request/response DTOs live alongside their respective handlers so tests
// and documentation share the same ground truth.
package http
