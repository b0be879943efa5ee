// Package api handles incoming HTTP requests, request validation and
// response formatting for the review scheduler, session and reward services.
// Caller identity is taken from the X-User-ID header set by the upstream
// gateway. Errors are mapped to status codes by kind and clients only ever
// see the safe messages from GetSafeErrorMessage.
package api
