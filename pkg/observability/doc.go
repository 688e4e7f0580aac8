/*
Package observability exports Prometheus metrics for document lifecycles.

Metrics plugs into loom construction through Hooks, into runtime documents
through ObserveUpdate, and into the HTTP adapter through RecordHTTPRequest.
*/
package observability
