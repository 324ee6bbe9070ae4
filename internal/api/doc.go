// Package api implements the HTTP layer of the gateway: request
// submission, status polling, and the error-to-status-code mapping that
// keeps internal error details out of client responses.
package api
