package token

import (
	"errors"
	"testing"
	"time"

	"github.com/smartattend/backend/internal/domain"
)

// fakeClock makes the registry's notion of "now" deterministic.
type fakeClock struct {
	unix int64
}

func (c *fakeClock) now() time.Time { return time.Unix(c.unix, 0) }

func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clock := &fakeClock{unix: 1000}
	r := NewRegistry(NewCodec("test-secret"), 5, 2)
	r.now = clock.now
	return r, clock
}

func TestCreateSeedsSequenceOne(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)

	update, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if update.Sequence != 1 {
		t.Errorf("sequence: got %d, want 1", update.Sequence)
	}
	if update.IssuedAt != 1000 {
		t.Errorf("issuedAt: got %d, want 1000", update.IssuedAt)
	}
	if update.ExpiresAt != 1005 {
		t.Errorf("expiresAt: got %d, want 1005", update.ExpiresAt)
	}

	if _, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301"); !errors.Is(err, domain.ErrSessionAlreadyActive) {
		t.Errorf("second Create: got %v, want ErrSessionAlreadyActive", err)
	}
}

func TestRotateIncrementsSequenceAndKeepsGraceSlot(t *testing.T) {
	t.Parallel()
	r, clock := newTestRegistry(t)

	first, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock.unix = 1005
	second, err := r.Rotate("SESS_A")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if second.Sequence != first.Sequence+1 {
		t.Errorf("sequence: got %d, want %d", second.Sequence, first.Sequence+1)
	}
	if second.Token == first.Token {
		t.Error("rotation did not mint a new token")
	}

	// Prior current moves to the previous slot and stays valid while its
	// own age is inside the window.
	clock.unix = 1006
	if ok, reason := r.Validate("SESS_A", first.Token); !ok {
		t.Errorf("previous-slot token: got %s, want valid", reason)
	}
	if ok, reason := r.Validate("SESS_A", second.Token); !ok {
		t.Errorf("current token: got %s, want valid", reason)
	}

	// One more rotation pushes the first token out entirely.
	clock.unix = 1007
	if _, err := r.Rotate("SESS_A"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if ok, reason := r.Validate("SESS_A", first.Token); ok || reason != ReasonTokenExpired {
		t.Errorf("evicted token: got ok=%v reason=%s, want token_expired", ok, reason)
	}
}

func TestValidateAgeWindowAppliesToBothSlots(t *testing.T) {
	t.Parallel()
	r, clock := newTestRegistry(t)

	first, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// validity 5s + grace 2s: valid at +7, expired at +8 even while still
	// occupying the current slot.
	clock.unix = 1007
	if ok, reason := r.Validate("SESS_A", first.Token); !ok {
		t.Errorf("at +7s: got %s, want valid", reason)
	}
	clock.unix = 1008
	if ok, reason := r.Validate("SESS_A", first.Token); ok || reason != ReasonTokenExpired {
		t.Errorf("at +8s: got ok=%v reason=%s, want token_expired", ok, reason)
	}

	// Same cutoff in the previous slot: the grace slot never extends the
	// absolute window.
	r2, clock2 := newTestRegistry(t)
	aged, err := r2.Create("SESS_B", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock2.unix = 1005
	if _, err := r2.Rotate("SESS_B"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	clock2.unix = 1009
	if ok, reason := r2.Validate("SESS_B", aged.Token); ok || reason != ReasonTokenExpired {
		t.Errorf("previous slot at +9s: got ok=%v reason=%s, want token_expired", ok, reason)
	}
}

func TestValidateRejectsFutureToken(t *testing.T) {
	t.Parallel()
	r, clock := newTestRegistry(t)

	update, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Clock skew: a token stamped later than server time is rejected.
	clock.unix = 999
	if ok, reason := r.Validate("SESS_A", update.Token); ok || reason != ReasonTokenExpired {
		t.Errorf("future token: got ok=%v reason=%s, want token_expired", ok, reason)
	}
}

func TestValidateSessionMismatch(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)

	a, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create A: %v", err)
	}
	if _, err := r.Create("SESS_B", "CSE-3B", "LH-205", "CS302"); err != nil {
		t.Fatalf("Create B: %v", err)
	}

	if ok, reason := r.Validate("SESS_B", a.Token); ok || reason != ReasonSessionMismatch {
		t.Errorf("got ok=%v reason=%s, want session_mismatch", ok, reason)
	}
}

func TestValidateRejectsForgedToken(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)

	if _, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	forged, err := NewCodec("attacker-key").Encode(Payload{
		SessionID: "SESS_A",
		Sequence:  1,
		IssuedAt:  1000,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if ok, reason := r.Validate("SESS_A", forged); ok || reason != ReasonSignatureInvalid {
		t.Errorf("got ok=%v reason=%s, want signature_invalid", ok, reason)
	}
}

func TestEndRemovesState(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)

	update, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	r.End("SESS_A")

	if ok, reason := r.Validate("SESS_A", update.Token); ok || reason != ReasonNoActiveTokens {
		t.Errorf("Validate after End: got ok=%v reason=%s, want no_active_tokens", ok, reason)
	}
	if _, err := r.Rotate("SESS_A"); !errors.Is(err, domain.ErrNoActiveTokens) {
		t.Errorf("Rotate after End: got %v, want ErrNoActiveTokens", err)
	}
}

func TestExpireAll(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)

	for _, id := range []string{"SESS_A", "SESS_B", "SESS_C"} {
		if _, err := r.Create(id, "CSE-3A", "LH-204", "CS301"); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	if n := r.ExpireAll(); n != 3 {
		t.Errorf("ExpireAll: got %d, want 3", n)
	}
	if ids := r.ActiveSessionIDs(); len(ids) != 0 {
		t.Errorf("ActiveSessionIDs after ExpireAll: got %v, want empty", ids)
	}
}

func TestCurrentReturnsLiveToken(t *testing.T) {
	t.Parallel()
	r, clock := newTestRegistry(t)

	if _, err := r.Create("SESS_A", "CSE-3A", "LH-204", "CS301"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	clock.unix = 1005
	rotated, err := r.Rotate("SESS_A")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	current, err := r.Current("SESS_A")
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.Token != rotated.Token || current.Sequence != rotated.Sequence {
		t.Errorf("Current: got seq %d token %q, want seq %d token %q",
			current.Sequence, current.Token, rotated.Sequence, rotated.Token)
	}

	if _, err := r.Current("SESS_MISSING"); !errors.Is(err, domain.ErrNoActiveTokens) {
		t.Errorf("Current missing: got %v, want ErrNoActiveTokens", err)
	}
}
