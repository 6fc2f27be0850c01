package profile

// Field names the profile attribute an operation acts on.
type Field string

const (
	FieldPhoto       Field = "photo"
	FieldName        Field = "name"
	FieldUsername    Field = "username"
	FieldDescription Field = "description"
	FieldEmail       Field = "email"
	FieldPassword    Field = "password"
	FieldAccount     Field = "account"
	FieldSession     Field = "session"
)

// State is a step of a field edit.
type State int

const (
	StateIdle State = iota
	StateEditing
	StateValidating
	StateCommitting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateValidating:
		return "validating"
	case StateCommitting:
		return "committing"
	case StateDone:
		return "done"
	}
	return "unknown"
}

type Status int

const (
	StatusNoOp Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNoOp:
		return "no-op"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome reports how an operation ended. State is the last step reached
// before Done; Code is the message code shown to the user, if any.
type Outcome struct {
	Field  Field
	State  State
	Status Status
	Code   string
	Err    error
}
