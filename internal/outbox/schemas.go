package outbox

const sessionStartedSchema = `{
  "type": "object",
  "title": "SessionStarted",
  "properties": {
    "session_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "ritual_id": {"type": "string"},
    "ritual_name": {"type": "string"},
    "source": {"type": "string"},
    "phase_count": {"type": "integer"},
    "planned_duration_sec": {"type": "integer"},
    "started_at": {"type": "string", "format": "date-time"},
    "version": {"type": "string"}
  },
  "required": ["session_id", "tenant_id", "user_id", "ritual_id", "source", "phase_count", "planned_duration_sec", "started_at", "version"],
  "additionalProperties": false
}`

const sessionCompletedSchema = `{
  "type": "object",
  "title": "SessionCompleted",
  "properties": {
    "session_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "ritual_id": {"type": "string"},
    "planned_duration_sec": {"type": "integer"},
    "actual_duration_sec": {"type": "integer"},
    "completed_at": {"type": "string", "format": "date-time"},
    "version": {"type": "string"}
  },
  "required": ["session_id", "tenant_id", "user_id", "ritual_id", "planned_duration_sec", "actual_duration_sec", "completed_at", "version"],
  "additionalProperties": false
}`

const sessionStateChangedSchema = `{
  "type": "object",
  "title": "SessionStateChanged",
  "properties": {
    "session_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "state": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["session_id", "tenant_id", "user_id", "state", "occurred_at"],
  "additionalProperties": false
}`
