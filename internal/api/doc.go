// Package api is the HTTP ingest and introspection surface: the three
// mobile/tracker ingest adapters (spec §4.7), the live-summary and
// per-pilot query endpoints, the async pilot/flight deletion
// operations, queue introspection, and the health check. Authentication
// is an external collaborator (spec §6); this package trusts whatever
// identity the upstream edge has already attached to the request.
package api
