package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(i int) *int              { return &i }

func TestDocument_ComputeStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		doc  Document
		want DocumentStatus
	}{
		{
			name: "no constraints is active",
			doc:  Document{},
			want: StatusActive,
		},
		{
			name: "future expiry is active",
			doc:  Document{ExpiresAt: timePtr(future)},
			want: StatusActive,
		},
		{
			name: "past expiry is expired",
			doc:  Document{ExpiresAt: timePtr(past)},
			want: StatusExpired,
		},
		{
			name: "view limit reached is exhausted",
			doc:  Document{ViewLimit: intPtr(3), AccessCount: 3},
			want: StatusViewExhausted,
		},
		{
			name: "view limit exceeded is exhausted",
			doc:  Document{ViewLimit: intPtr(3), AccessCount: 5},
			want: StatusViewExhausted,
		},
		{
			name: "one view remaining is active",
			doc:  Document{ViewLimit: intPtr(3), AccessCount: 2},
			want: StatusActive,
		},
		{
			name: "deleted wins over expired",
			doc:  Document{DeletedAt: timePtr(past), ExpiresAt: timePtr(past)},
			want: StatusDeleted,
		},
		{
			name: "deleted wins over exhausted",
			doc:  Document{DeletedAt: timePtr(past), ViewLimit: intPtr(1), AccessCount: 1},
			want: StatusDeleted,
		},
		{
			name: "expired wins over exhausted",
			doc:  Document{ExpiresAt: timePtr(past), ViewLimit: intPtr(1), AccessCount: 1},
			want: StatusExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.ComputeStatus(now))
		})
	}
}

func TestDocument_RefreshStatus(t *testing.T) {
	now := time.Now()

	doc := Document{Status: StatusActive, ExpiresAt: timePtr(now.Add(-time.Minute))}
	assert.True(t, doc.RefreshStatus(now))
	assert.Equal(t, StatusExpired, doc.Status)

	// No change on a second refresh.
	assert.False(t, doc.RefreshStatus(now))
}

func TestDocument_IsAccessibleBy(t *testing.T) {
	now := time.Now()
	sender := uuid.New()
	recipient := uuid.New()
	stranger := uuid.New()

	doc := Document{SenderID: sender, RecipientID: recipient}

	assert.True(t, doc.IsAccessibleBy(sender, now))
	assert.True(t, doc.IsAccessibleBy(recipient, now))
	assert.False(t, doc.IsAccessibleBy(stranger, now))

	expired := Document{SenderID: sender, RecipientID: recipient, ExpiresAt: timePtr(now.Add(-time.Minute))}
	assert.False(t, expired.IsAccessibleBy(sender, now))
	assert.False(t, expired.IsAccessibleBy(recipient, now))
}

func TestDocument_EligibleForPurge(t *testing.T) {
	now := time.Now()
	grace := 30 * 24 * time.Hour

	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{
			name: "not deleted",
			doc:  Document{UpdatedAt: now.Add(-60 * 24 * time.Hour)},
			want: false,
		},
		{
			name: "deleted past grace",
			doc:  Document{DeletedAt: timePtr(now.Add(-60 * 24 * time.Hour)), UpdatedAt: now.Add(-60 * 24 * time.Hour)},
			want: true,
		},
		{
			name: "deleted exactly at grace boundary",
			doc:  Document{DeletedAt: timePtr(now.Add(-grace)), UpdatedAt: now.Add(-grace)},
			want: true,
		},
		{
			name: "deleted one day fresher than grace",
			doc:  Document{DeletedAt: timePtr(now.Add(-grace + 24*time.Hour)), UpdatedAt: now.Add(-grace + 24*time.Hour)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.EligibleForPurge(now, grace))
		})
	}
}

func TestCapability_Valid(t *testing.T) {
	for _, c := range []Capability{CapabilityRead, CapabilityWrite, CapabilityShare, CapabilityDelete, CapabilityAdmin} {
		assert.True(t, c.Valid())
	}
	assert.False(t, Capability("owner").Valid())
	assert.False(t, Capability("").Valid())
}

func TestDocumentPermission_Active(t *testing.T) {
	now := time.Now()

	perm := DocumentPermission{}
	assert.True(t, perm.Active(now), "no expiry means active")

	perm.ExpiresAt = timePtr(now.Add(time.Hour))
	assert.True(t, perm.Active(now))

	perm.ExpiresAt = timePtr(now.Add(-time.Hour))
	assert.False(t, perm.Active(now), "expired grant is inert")
}
