package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testParty() *Party {
	return &Party{
		ID:            "party-1",
		HostID:        "host-1",
		Name:          "Rooftop Night",
		Visibility:    VisibilityPublic,
		MaxGuestCount: 2,
		TicketPrice:   decimal.NewFromInt(25),
		StartTime:     time.Now().Add(3 * time.Hour),
		EndTime:       time.Now().Add(8 * time.Hour),
	}
}

func TestParty_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Party)
		wantErr bool
	}{
		{
			name:    "valid party",
			mutate:  func(p *Party) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			mutate:  func(p *Party) { p.HostID = "" },
			wantErr: true,
		},
		{
			name:    "zero capacity",
			mutate:  func(p *Party) { p.MaxGuestCount = 0 },
			wantErr: true,
		},
		{
			name:    "negative price",
			mutate:  func(p *Party) { p.TicketPrice = decimal.NewFromInt(-1) },
			wantErr: true,
		},
		{
			name:    "end before start",
			mutate:  func(p *Party) { p.EndTime = p.StartTime.Add(-time.Hour) },
			wantErr: true,
		},
		{
			name: "active users over capacity",
			mutate: func(p *Party) {
				p.ActiveUsers = []string{"a", "b", "c"}
			},
			wantErr: true,
		},
		{
			name: "duplicate request for same user",
			mutate: func(p *Party) {
				p.GuestRequests = []GuestRequest{
					{ID: "r1", UserID: "u1"},
					{ID: "r2", UserID: "u1"},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party := testParty()
			tt.mutate(party)
			err := party.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGuestRequest_Confirmed(t *testing.T) {
	tests := []struct {
		name     string
		approval ApprovalStatus
		payment  PaymentStatus
		want     bool
	}{
		{"approved and paid", ApprovalApproved, PaymentPaid, true},
		{"approved for free", ApprovalApproved, PaymentFree, true},
		{"approved but unpaid", ApprovalApproved, PaymentPending, false},
		{"approved proof submitted", ApprovalApproved, PaymentProofSubmitted, false},
		{"pending paid", ApprovalPending, PaymentPaid, false},
		{"denied free", ApprovalDenied, PaymentFree, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := &GuestRequest{ApprovalStatus: tt.approval, PaymentStatus: tt.payment}
			assert.Equal(t, tt.want, request.Confirmed())
		})
	}
}

func TestParty_AddActiveUser(t *testing.T) {
	party := testParty()

	assert.True(t, party.AddActiveUser("u1"))
	assert.True(t, party.AddActiveUser("u2"))
	assert.True(t, party.IsSoldOut())

	// Full party rejects a new member.
	assert.False(t, party.AddActiveUser("u3"))
	assert.Len(t, party.ActiveUsers, 2)

	// Re-adding an existing member is a no-op, even at capacity.
	assert.True(t, party.AddActiveUser("u1"))
	assert.Len(t, party.ActiveUsers, 2)
}

func TestParty_RemoveActiveUser(t *testing.T) {
	party := testParty()
	party.ActiveUsers = []string{"u1", "u2"}

	party.RemoveActiveUser("u1")
	assert.Equal(t, []string{"u2"}, party.ActiveUsers)

	party.RemoveActiveUser("missing")
	assert.Equal(t, []string{"u2"}, party.ActiveUsers)
}

func TestParty_IsActiveAround(t *testing.T) {
	now := time.Now()
	lead := 2 * time.Hour

	tests := []struct {
		name   string
		mutate func(p *Party)
		want   bool
	}{
		{
			name: "in progress",
			mutate: func(p *Party) {
				p.StartTime = now.Add(-time.Hour)
				p.EndTime = now.Add(time.Hour)
			},
			want: true,
		},
		{
			name: "starting within lead",
			mutate: func(p *Party) {
				p.StartTime = now.Add(time.Hour)
				p.EndTime = now.Add(5 * time.Hour)
			},
			want: true,
		},
		{
			name: "starting after lead",
			mutate: func(p *Party) {
				p.StartTime = now.Add(3 * time.Hour)
				p.EndTime = now.Add(8 * time.Hour)
			},
			want: false,
		},
		{
			name: "already ended",
			mutate: func(p *Party) {
				p.StartTime = now.Add(-5 * time.Hour)
				p.EndTime = now.Add(-time.Hour)
			},
			want: false,
		},
		{
			name: "canceled in progress",
			mutate: func(p *Party) {
				p.StartTime = now.Add(-time.Hour)
				p.EndTime = now.Add(time.Hour)
				p.Canceled = true
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party := testParty()
			tt.mutate(party)
			assert.Equal(t, tt.want, party.IsActiveAround(now, lead))
		})
	}
}

func TestParty_HasEnded(t *testing.T) {
	now := time.Now()

	party := testParty()
	assert.False(t, party.HasEnded(now))

	party.EndTime = now.Add(-time.Minute)
	assert.True(t, party.HasEnded(now))

	party.EndTime = time.Time{}
	assert.False(t, party.HasEnded(now))
}

func TestParty_Clone(t *testing.T) {
	party := testParty()
	party.ActiveUsers = []string{"u1"}
	party.GuestRequests = []GuestRequest{{ID: "r1", UserID: "u1"}}

	clone := party.Clone()
	clone.ActiveUsers[0] = "mutated"
	clone.GuestRequests[0].UserID = "mutated"
	clone.Name = "mutated"

	assert.Equal(t, "u1", party.ActiveUsers[0])
	assert.Equal(t, "u1", party.GuestRequests[0].UserID)
	assert.Equal(t, "Rooftop Night", party.Name)
}
