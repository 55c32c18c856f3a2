package entitlements

import (
	"github.com/marcwilhelm/SalonOwl/app/models"
)

// Limit outcome for a single resource dimension. A zero max means unlimited.
func withinLimit(used, max int) bool {
	return max == 0 || used < max
}

// CanCreateBooking reports whether the subscription allows another booking.
func CanCreateBooking(sub *models.Subscription) bool {
	return sub.IsActive() && withinLimit(sub.UsedBookings, sub.MaxBookings)
}

// CanAddStaff reports whether the subscription allows another staff member.
func CanAddStaff(sub *models.Subscription) bool {
	return sub.IsActive() && withinLimit(sub.UsedStaff, sub.MaxStaff)
}

// CanAddLocation reports whether the subscription allows another salon.
func CanAddLocation(sub *models.Subscription) bool {
	return sub.IsActive() && withinLimit(sub.UsedLocations, sub.MaxLocations)
}

// ExceededDimensions lists the resource dimensions where current usage
// already exceeds the subscription's limits. Non-empty after a downgrade
// to a smaller plan; existing resources are kept but creation is blocked.
func ExceededDimensions(sub *models.Subscription) []string {
	var exceeded []string
	if sub.MaxBookings > 0 && sub.UsedBookings > sub.MaxBookings {
		exceeded = append(exceeded, "bookings")
	}
	if sub.MaxStaff > 0 && sub.UsedStaff > sub.MaxStaff {
		exceeded = append(exceeded, "staff")
	}
	if sub.MaxLocations > 0 && sub.UsedLocations > sub.MaxLocations {
		exceeded = append(exceeded, "locations")
	}
	return exceeded
}
