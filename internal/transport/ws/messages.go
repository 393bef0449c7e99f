package ws

// Client → server commands. Each carries a positive id; the reply echoes it.
const (
	TypeAuthenticate = "authenticate"
	TypeGetAll       = "get_all"
	TypeAdd          = "add"
	TypeAction       = "action"
	TypeLock         = "lock"
	TypeUnlock       = "unlock"
	TypeGetLocked    = "get_locked"
	TypeClear        = "clear"
	TypeGetStaffList = "get_staff_list"
	TypeCheckIn      = "check_in"
	TypeCheckOut     = "check_out"
)

// Server → client push events (id 0).
const (
	TypeEdit      = "edit"       // {added_entries, edited_entries, deleted_usernames}
	TypeLocked    = "locked"     // bool
	TypeStaffList = "staff_list" // {checked_in, logged_in, removed}
)

type Message struct {
	ID      int64  `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type AuthReply struct {
	Username    string   `json:"username"`
	Token       string   `json:"token"`
	Permissions []string `json:"permissions"`
}

type AddRequest struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type AddReply struct {
	Success bool `json:"success"`
}

type ActionRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
}

type GetAllRequest struct {
	Type  string `json:"type,omitempty"`
	State string `json:"state,omitempty"`
}

type StaffListReply struct {
	Confirmed   []string `json:"confirmed"`
	Unconfirmed []string `json:"unconfirmed"`
}

type TargetRequest struct {
	Username string `json:"username"`
}
