package domain

import (
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"time"
)

const (
	TypeHelp     = "help"
	TypeCheckoff = "checkoff"
)

const (
	StateUnclaimed = "unclaimed"
	StateClaimed   = "claimed"
)

// Action names, dispatched through the per-type action table in the service
// layer.
const (
	ActionClaim          = "claim"
	ActionDisclaim       = "disclaim"
	ActionRemove         = "remove"
	ActionSingleCheckoff = "single_checkoff"
	ActionGroupCheckoff  = "group_checkoff"
)

// Entry is one queue slot. Username is the primary key, so a user holds at
// most one active entry system-wide.
type Entry struct {
	Username     string
	Room         string
	Type         string
	State        string
	Claimant     string // empty while unclaimed
	ClaimantName string
	Data         map[string]any // variant payload: location, assignment
	DateAdded    time.Time
	LastModified time.Time
}

// Assignment is the course artifact a checkoff entry refers to.
type Assignment struct {
	Path []string `json:"path"`
	Page string   `json:"page"`
	Name string   `json:"name"`
}

// Assignment decodes the assignment reference out of the entry payload.
func (e *Entry) Assignment() (Assignment, bool) {
	raw, ok := e.Data["assignment"]
	if !ok {
		return Assignment{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Assignment{}, false
	}
	var a Assignment
	if err := json.Unmarshal(b, &a); err != nil {
		return Assignment{}, false
	}
	return a, true
}

type GroupMember struct {
	Username string `json:"username"`
	RealName string `json:"real_name"`
}

// Rendered is the per-viewer wire form of an entry. It must be computed per
// viewer: the redacted form depends on who is looking.
type Rendered struct {
	Data         map[string]any `json:"data"`
	Type         string         `json:"type"`
	Actions      []string       `json:"actions"`
	DateAdded    time.Time      `json:"date_added"`
	LastModified *time.Time     `json:"last_modified,omitempty"`
	Username     string         `json:"username"`
	RealName     string         `json:"real_name"`
}

// Directory resolves a username to a display name; unknown users resolve to
// the empty string.
type Directory interface {
	RealName(username string) string
}

type variant struct {
	visibleTo func(e *Entry, v Viewer) bool
	actions   func(e *Entry, v Viewer) []string
}

var variants = map[string]variant{
	TypeHelp: {
		visibleTo: func(e *Entry, v Viewer) bool {
			return v.Username == e.Username || (v.Role != RoleGuest && v.Role != RoleStudent)
		},
		actions: baseActions,
	},
	TypeCheckoff: {
		visibleTo: func(e *Entry, v Viewer) bool {
			return v.Username == e.Username || v.Permissions.Has(PermViewAll)
		},
		actions: func(e *Entry, v Viewer) []string {
			acts := baseActions(e, v)
			if e.State == StateClaimed && e.Claimant == v.Username {
				acts = append(acts, ActionGroupCheckoff, ActionSingleCheckoff)
			}
			return acts
		},
	},
}

func KnownType(t string) bool {
	_, ok := variants[t]
	return ok
}

// DataSkeleton keeps only the fields an add command may set. Anything else
// the client submits (state in particular) is dropped here so a re-add can
// never resurrect claim state.
func DataSkeleton(data map[string]any) map[string]any {
	skel := map[string]any{}
	if v, ok := data["location"]; ok {
		skel["location"] = v
	}
	if v, ok := data["assignment"]; ok {
		skel["assignment"] = v
	}
	return skel
}

func baseActions(e *Entry, v Viewer) []string {
	switch e.State {
	case StateClaimed:
		if e.Claimant != v.Username {
			return []string{}
		}
		return []string{ActionDisclaim, ActionRemove}
	default:
		return []string{ActionClaim}
	}
}

func (e *Entry) VisibleTo(v Viewer) bool {
	vt, ok := variants[e.Type]
	if !ok {
		return v.Username == e.Username
	}
	return vt.visibleTo(e, v)
}

// Render produces the viewer-specific record. A nil group falls back to the
// requester alone; redacted records never reveal the group.
func (e *Entry) Render(v Viewer, dir Directory, group []GroupMember) Rendered {
	if !e.VisibleTo(v) {
		return Rendered{
			Data:      map[string]any{"state": e.State},
			Actions:   []string{},
			Username:  HashUsername(e.Username),
			DateAdded: e.DateAdded,
		}
	}

	if group == nil {
		group = []GroupMember{{Username: e.Username, RealName: dir.RealName(e.Username)}}
	}

	data := make(map[string]any, len(e.Data)+4)
	for k, val := range e.Data {
		data[k] = val
	}
	data["state"] = e.State
	if e.Claimant != "" {
		data["claimant"] = e.Claimant
		data["claimant_real_name"] = e.ClaimantName
	}
	data["group"] = group

	lm := e.LastModified
	return Rendered{
		Data:         data,
		Type:         e.Type,
		Actions:      variants[e.Type].actions(e, v),
		DateAdded:    e.DateAdded,
		LastModified: &lm,
		Username:     e.Username,
		RealName:     dir.RealName(e.Username),
	}
}

// HashUsername is the one-way identity token used in redacted records.
func HashUsername(username string) string {
	sum := sha512.Sum512([]byte(username))
	return hex.EncodeToString(sum[:])
}
