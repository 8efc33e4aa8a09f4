// Package middleware provides HTTP middleware for the compression service.
//
// It includes:
//   - Request ids and W3C Extended Log Format request logging
//   - Prometheus request metrics labelled by route template
//   - gzip for JSON responses; encoded video passes through untouched
package middleware
