package models

// BookingStatus is shared by trip seat bookings and vehicle rentals.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// CalendarStatuses are the vehicle booking states that occupy a date range.
var CalendarStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
	BookingStatusCompleted,
}

// ActiveStatuses are the vehicle booking states that keep a listing unavailable.
var ActiveStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusRejected,
		BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next.
// pending -> confirmed | rejected, confirmed -> cancelled | completed.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case BookingStatusPending:
		return next == BookingStatusConfirmed || next == BookingStatusRejected
	case BookingStatusConfirmed:
		return next == BookingStatusCancelled || next == BookingStatusCompleted
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return false
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusRejected, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Active reports whether a vehicle booking in this state holds its listing.
func (s BookingStatus) Active() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// OccupiesCalendar reports whether the booking's range blocks other rentals.
func (s BookingStatus) OccupiesCalendar() bool {
	return s.Active() || s == BookingStatusCompleted
}
