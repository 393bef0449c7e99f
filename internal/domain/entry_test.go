package domain

import (
	"testing"
	"time"
)

type fakeDirectory map[string]string

func (d fakeDirectory) RealName(username string) string { return d[username] }

func helpEntry(username string) *Entry {
	return &Entry{
		Username:     username,
		Room:         "lab1",
		Type:         TypeHelp,
		State:        StateUnclaimed,
		Data:         map[string]any{"location": "table 3"},
		DateAdded:    time.Now(),
		LastModified: time.Now(),
	}
}

func staffViewer(username string) Viewer {
	return Viewer{
		Username:    username,
		Role:        RoleUTA,
		Permissions: NewPermissionSet("claim", "checkoff", "queue_view_all"),
	}
}

func studentViewer(username string) Viewer {
	return Viewer{Username: username, Role: RoleStudent, Permissions: PermissionSet{}}
}

func TestHelpEntry_VisibleTo(t *testing.T) {
	e := helpEntry("alice")

	if !e.VisibleTo(studentViewer("alice")) {
		t.Fatal("owner should see own entry")
	}
	if e.VisibleTo(studentViewer("bob")) {
		t.Fatal("other student should not see help entry")
	}
	if !e.VisibleTo(staffViewer("carol")) {
		t.Fatal("staff should see help entry")
	}
}

func TestCheckoffEntry_VisibleTo(t *testing.T) {
	e := helpEntry("alice")
	e.Type = TypeCheckoff

	if !e.VisibleTo(studentViewer("alice")) {
		t.Fatal("owner should see own checkoff entry")
	}
	if e.VisibleTo(studentViewer("bob")) {
		t.Fatal("other student should not see checkoff entry")
	}
	sla := Viewer{Username: "dan", Role: RoleSLA, Permissions: NewPermissionSet(string(PermViewAll))}
	if !e.VisibleTo(sla) {
		t.Fatal("queue_view_all should see checkoff entry")
	}
	uta := Viewer{Username: "erin", Role: RoleUTA, Permissions: PermissionSet{}}
	if uta.Permissions.Has(PermViewAll) {
		t.Fatal("setup broken")
	}
	if e.VisibleTo(uta) {
		t.Fatal("checkoff visibility is capability-gated, not role-gated")
	}
}

func TestRender_Redacted(t *testing.T) {
	e := helpEntry("alice")
	dir := fakeDirectory{"alice": "Alice A."}

	r := e.Render(studentViewer("bob"), dir, nil)

	if r.Username != HashUsername("alice") {
		t.Fatalf("redacted username should be hashed, got %q", r.Username)
	}
	if len(r.Data) != 1 || r.Data["state"] != StateUnclaimed {
		t.Fatalf("redacted data should only carry state, got %v", r.Data)
	}
	if len(r.Actions) != 0 {
		t.Fatalf("redacted record should offer no actions, got %v", r.Actions)
	}
	if r.LastModified != nil {
		t.Fatal("redacted record should not carry last_modified")
	}
	if r.DateAdded.IsZero() {
		t.Fatal("redacted record keeps date_added for ordering")
	}
}

func TestRender_Full(t *testing.T) {
	e := helpEntry("alice")
	e.State = StateClaimed
	e.Claimant = "carol"
	e.ClaimantName = "Carol C."
	dir := fakeDirectory{"alice": "Alice A."}

	r := e.Render(staffViewer("carol"), dir, nil)

	if r.Username != "alice" || r.RealName != "Alice A." {
		t.Fatalf("full record should carry identity, got %q/%q", r.Username, r.RealName)
	}
	if r.Data["location"] != "table 3" {
		t.Fatalf("payload missing: %v", r.Data)
	}
	if r.Data["claimant"] != "carol" || r.Data["claimant_real_name"] != "Carol C." {
		t.Fatalf("claimant fields missing: %v", r.Data)
	}
	group, ok := r.Data["group"].([]GroupMember)
	if !ok || len(group) != 1 || group[0].Username != "alice" {
		t.Fatalf("nil group should fall back to the requester, got %v", r.Data["group"])
	}
	if r.LastModified == nil {
		t.Fatal("full record should carry last_modified")
	}
}

func TestActions_Help(t *testing.T) {
	e := helpEntry("alice")
	dir := fakeDirectory{}

	r := e.Render(staffViewer("carol"), dir, nil)
	if len(r.Actions) != 1 || r.Actions[0] != ActionClaim {
		t.Fatalf("unclaimed entry should offer claim, got %v", r.Actions)
	}

	e.State = StateClaimed
	e.Claimant = "carol"
	r = e.Render(staffViewer("carol"), dir, nil)
	if len(r.Actions) != 2 || r.Actions[0] != ActionDisclaim || r.Actions[1] != ActionRemove {
		t.Fatalf("claimant should get disclaim/remove, got %v", r.Actions)
	}

	r = e.Render(staffViewer("dave"), dir, nil)
	if len(r.Actions) != 0 {
		t.Fatalf("non-claimant gets no actions on a claimed entry, got %v", r.Actions)
	}
}

func TestActions_CheckoffClaimed(t *testing.T) {
	e := helpEntry("alice")
	e.Type = TypeCheckoff
	e.State = StateClaimed
	e.Claimant = "carol"

	r := e.Render(staffViewer("carol"), fakeDirectory{}, nil)

	want := map[string]bool{
		ActionDisclaim:       true,
		ActionRemove:         true,
		ActionGroupCheckoff:  true,
		ActionSingleCheckoff: true,
	}
	if len(r.Actions) != len(want) {
		t.Fatalf("expected %d actions, got %v", len(want), r.Actions)
	}
	for _, a := range r.Actions {
		if !want[a] {
			t.Fatalf("unexpected action %q in %v", a, r.Actions)
		}
	}
}

func TestDataSkeleton(t *testing.T) {
	data := map[string]any{
		"location":   "table 3",
		"assignment": map[string]any{"name": "lab05"},
		"state":      StateClaimed,
		"claimant":   "mallory",
	}

	skel := DataSkeleton(data)

	if len(skel) != 2 {
		t.Fatalf("skeleton should keep location and assignment only, got %v", skel)
	}
	if _, ok := skel["state"]; ok {
		t.Fatal("client-sent state must be dropped")
	}
}

func TestAssignment(t *testing.T) {
	e := helpEntry("alice")
	e.Type = TypeCheckoff
	e.Data["assignment"] = map[string]any{
		"path": []any{"labs", "lab05"},
		"page": "https://course.example/grade",
		"name": "lab05",
	}

	a, ok := e.Assignment()
	if !ok {
		t.Fatal("assignment should decode")
	}
	if a.Name != "lab05" || a.Page != "https://course.example/grade" || len(a.Path) != 2 {
		t.Fatalf("bad decode: %+v", a)
	}

	delete(e.Data, "assignment")
	if _, ok := e.Assignment(); ok {
		t.Fatal("missing assignment should report false")
	}
}

func TestHashUsername(t *testing.T) {
	h := HashUsername("alice")
	if len(h) != 128 {
		t.Fatalf("expected sha512 hex digest, got %d chars", len(h))
	}
	if h != HashUsername("alice") {
		t.Fatal("hash must be stable")
	}
	if h == HashUsername("bob") {
		t.Fatal("distinct users must hash differently")
	}
}
