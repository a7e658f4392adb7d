package auth

// Known OAuth scopes used by the service.
const (
	ScopeTelemetryRead = "telemetry:read"
	ScopeRollupsRun    = "rollups:run"
)
