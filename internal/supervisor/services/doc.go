/*
Package services provides suture.Service wrappers for components that
don't already speak suture's Serve(ctx) error lifecycle directly.

gpstcp.Server and writer.Worker implement suture.Service natively and are
added to the supervisor tree as-is. This package covers the rest:

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the blocking ListenAndServe pattern to Serve

Retention Sweep (RetentionSweepService):
  - Runs once a day, deleting live-source track points and flights past
    their retention window

DLQ Reaper (DLQReaperService):
  - Runs once a day, purging Dead Letter Queue entries past their
    retention window so a producer outage can't grow the DLQ unbounded

Queue Stats Reporter (QueueStatsReporterService):
  - Polls queue depth and DLQ size on a short interval and feeds the
    Prometheus gauges, independent of the Writer drain cadence

Race Hubs are not wrapped here: fanout.Hub already implements
suture.Service, and fanout.Registry adds/removes Hubs directly against
the supervisor tree's fan-out layer as races start and conclude.
*/
package services
