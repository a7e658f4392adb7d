package outbox

const rollupCompletedSchema = `{
  "type": "object",
  "title": "RollupCompleted",
  "properties": {
    "rollup_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "as_of_date": {"type": "string", "format": "date"},
    "clients_tracked": {"type": "integer"},
    "clients_new": {"type": "integer"},
    "clients_aged_out": {"type": "integer"},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["rollup_id", "tenant_id", "as_of_date", "clients_tracked", "clients_new", "clients_aged_out", "completed_at"],
  "additionalProperties": false
}`

const clientAgedOutSchema = `{
  "type": "object",
  "title": "ClientAgedOut",
  "properties": {
    "tenant_id": {"type": "string"},
    "client_id": {"type": "string"},
    "as_of_date": {"type": "string", "format": "date"},
    "last_seen_date": {"type": "string", "format": "date"}
  },
  "required": ["tenant_id", "client_id", "as_of_date"],
  "additionalProperties": false
}`
