package audit

import "time"

// Action labels what happened to the resource.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionOpen    Action = "OPEN"
	ActionClose   Action = "CLOSE"
	ActionSign    Action = "SIGN"
	ActionRectify Action = "RECTIFY"
)

// FieldChange is one before/after pair inside an entry.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// Entry is one link of the hash chain. PrevHash/Hash are assigned by the
// chain on append; everything else comes from the emitting service. Keep it
// transport-agnostic so stores and sinks can fan out.
type Entry struct {
	ID         string         `json:"id"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resourceId,omitempty"`
	Action     Action         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	Method     string         `json:"method,omitempty"`
	StatusCode int            `json:"statusCode,omitempty"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OldValue   any            `json:"oldValue,omitempty"`
	NewValue   any            `json:"newValue,omitempty"`
	Changes    []FieldChange  `json:"changes,omitempty"`
	// Justification is mandatory for RECTIFY entries.
	Justification string `json:"justification,omitempty"`

	PrevHash  string    `json:"prevHash"`
	Hash      string    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// RequestMeta carries the request context services stamp onto the entries
// they emit. Transport fills it once per request.
type RequestMeta struct {
	Actor     string
	Method    string
	IP        string
	UserAgent string
}

// Apply copies the meta onto an entry.
func (m RequestMeta) Apply(e Entry) Entry {
	e.Actor = m.Actor
	e.Method = m.Method
	e.IP = m.IP
	e.UserAgent = m.UserAgent
	return e
}

// Filters narrows a List call. Zero values mean "any".
type Filters struct {
	Resource   string
	ResourceID string
	Action     Action
}

// VerifyResult reports a chain replay. BreakIndex is nil when the chain is
// intact, otherwise the zero-based position of the first broken link.
type VerifyResult struct {
	Total      int  `json:"total"`
	Valid      bool `json:"valid"`
	BreakIndex *int `json:"breakIndex"`
}
