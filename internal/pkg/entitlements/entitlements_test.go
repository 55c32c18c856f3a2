package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcwilhelm/SalonOwl/app/models"
)

func activeSub() *models.Subscription {
	return &models.Subscription{
		Status:       models.SubscriptionStatusActive,
		UsedBookings: 5, MaxBookings: 10,
		UsedStaff: 2, MaxStaff: 3,
		UsedLocations: 1, MaxLocations: 1,
	}
}

func TestCanCreateBooking(t *testing.T) {
	sub := activeSub()
	assert.True(t, CanCreateBooking(sub))

	sub.UsedBookings = 10
	assert.False(t, CanCreateBooking(sub))

	// zero max means unlimited
	sub.MaxBookings = 0
	assert.True(t, CanCreateBooking(sub))

	sub.Status = models.SubscriptionStatusCancelled
	assert.False(t, CanCreateBooking(sub))
}

func TestCanAddStaffAndLocation(t *testing.T) {
	sub := activeSub()
	assert.True(t, CanAddStaff(sub))
	assert.False(t, CanAddLocation(sub))

	sub.UsedStaff = 3
	assert.False(t, CanAddStaff(sub))
}

func TestExceededDimensions(t *testing.T) {
	sub := activeSub()
	assert.Empty(t, ExceededDimensions(sub))

	// after a downgrade, existing usage may exceed the new plan's limits
	sub.UsedBookings = 15
	sub.UsedStaff = 4
	assert.Equal(t, []string{"bookings", "staff"}, ExceededDimensions(sub))

	sub.UsedLocations = 2
	assert.Equal(t, []string{"bookings", "staff", "locations"}, ExceededDimensions(sub))
}
