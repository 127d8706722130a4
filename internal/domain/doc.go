// Package domain contains the request-scoped types of the accessibility
// gateway. It stays free of HTTP, Chrome and cloud client concerns.
package domain
