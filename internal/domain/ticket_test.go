package domain

import "testing"

func TestTicketStatusValid(t *testing.T) {
	cases := []struct {
		status TicketStatus
		want   bool
	}{
		{TicketStatusOpen, true},
		{TicketStatusInProgress, true},
		{TicketStatusClosed, true},
		{TicketStatus(""), false},
		{TicketStatus("open"), false},
		{TicketStatus("Done"), false},
		{TicketStatus("InProgress"), false},
	}
	for _, tc := range cases {
		if got := tc.status.Valid(); got != tc.want {
			t.Errorf("TicketStatus(%q).Valid() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	if got := NormalizeStatus(""); got != TicketStatusOpen {
		t.Errorf("NormalizeStatus(\"\") = %q, want Open", got)
	}
	if got := NormalizeStatus("Resolved"); got != TicketStatusOpen {
		t.Errorf("NormalizeStatus(\"Resolved\") = %q, want Open", got)
	}
	if got := NormalizeStatus(TicketStatusClosed); got != TicketStatusClosed {
		t.Errorf("NormalizeStatus(Closed) = %q, want Closed", got)
	}
}

func TestNormalizePriority(t *testing.T) {
	if got := NormalizePriority(""); got != TicketPriorityLow {
		t.Errorf("NormalizePriority(\"\") = %q, want Low", got)
	}
	if got := NormalizePriority("Urgent"); got != TicketPriorityLow {
		t.Errorf("NormalizePriority(\"Urgent\") = %q, want Low", got)
	}
	if got := NormalizePriority(TicketPriorityHigh); got != TicketPriorityHigh {
		t.Errorf("NormalizePriority(High) = %q, want High", got)
	}
}

func TestPersonRoleValid(t *testing.T) {
	for _, role := range []PersonRole{PersonRoleUser, PersonRoleAgent, PersonRoleAdmin} {
		if !role.Valid() {
			t.Errorf("PersonRole(%q).Valid() = false, want true", role)
		}
	}
	if PersonRole("manager").Valid() {
		t.Error("PersonRole(\"manager\").Valid() = true, want false")
	}
}
