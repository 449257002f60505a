// Package api contains the HTTP handlers for the pipeline: task dispatch,
// worker callbacks, decision-polling endpoints and the admin surface. Error
// mapping keeps internal error detail out of responses.
package api
