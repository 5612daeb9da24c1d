package policy

// Endpoint identifiers are route templates; they key the policy table,
// idempotency records and audit payloads.
const (
	EndpointCreateTicket      = "/tickets"
	EndpointIntake            = "/tickets/intake"
	EndpointTriage            = "/tickets/{ticketId}/triage"
	EndpointSchedulePropose   = "/tickets/{ticketId}/schedule/propose"
	EndpointScheduleConfirm   = "/tickets/{ticketId}/schedule/confirm"
	EndpointScheduleHold      = "/tickets/{ticketId}/schedule/hold"
	EndpointScheduleRelease   = "/tickets/{ticketId}/schedule/release"
	EndpointScheduleRollback  = "/tickets/{ticketId}/schedule/rollback"
	EndpointRecommend         = "/tickets/{ticketId}/assignment/recommend"
	EndpointDispatch          = "/tickets/{ticketId}/assignment/dispatch"
	EndpointCheckIn           = "/tickets/{ticketId}/tech/check-in"
	EndpointAddEvidence       = "/tickets/{ticketId}/evidence"
	EndpointComplete          = "/tickets/{ticketId}/tech/complete"
	EndpointCloseoutCandidate = "/tickets/{ticketId}/closeout/candidate"
	EndpointVerify            = "/tickets/{ticketId}/qa/verify"
	EndpointInvoice           = "/tickets/{ticketId}/billing/invoice"
	EndpointAutonomyPause     = "/ops/autonomy/pause"
	EndpointAutonomyRollback  = "/ops/autonomy/rollback"

	EndpointGetTicket       = "GET /tickets/{ticketId}"
	EndpointTimeline        = "GET /tickets/{ticketId}/timeline"
	EndpointListEvidence    = "GET /tickets/{ticketId}/evidence"
	EndpointJobPacket       = "GET /tickets/{ticketId}/job-packet"
	EndpointDispatcherQueue = "GET /dispatcher/queue"
	EndpointAutonomyState   = "GET /ops/autonomy/state"
	EndpointAutonomyReplay  = "GET /ops/autonomy/replay/{ticketId}"
	EndpointMetrics         = "GET /metrics"
	EndpointAlerts          = "GET /ops/alerts"
)

// KnownEndpoints lists every endpoint the service routes. A policy table must cover all of them.
var KnownEndpoints = []string{
	EndpointCreateTicket,
	EndpointIntake,
	EndpointTriage,
	EndpointSchedulePropose,
	EndpointScheduleConfirm,
	EndpointScheduleHold,
	EndpointScheduleRelease,
	EndpointScheduleRollback,
	EndpointRecommend,
	EndpointDispatch,
	EndpointCheckIn,
	EndpointAddEvidence,
	EndpointComplete,
	EndpointCloseoutCandidate,
	EndpointVerify,
	EndpointInvoice,
	EndpointAutonomyPause,
	EndpointAutonomyRollback,
	EndpointGetTicket,
	EndpointTimeline,
	EndpointListEvidence,
	EndpointJobPacket,
	EndpointDispatcherQueue,
	EndpointAutonomyState,
	EndpointAutonomyReplay,
	EndpointMetrics,
	EndpointAlerts,
}
