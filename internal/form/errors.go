package form

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnknownAttribute is returned for writes to an attribute the form does not carry.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrReadOnly is returned for writes to redemption attributes of a persisted coupon.
	ErrReadOnly = errors.New("attribute is read-only while editing")
	// ErrAxisRequired is returned for writes that would unset a selection axis.
	ErrAxisRequired = errors.New("attribute cannot be unset")
	// ErrSeatNotOffered is returned for a seat_type that the selected course
	// does not offer.
	ErrSeatNotOffered = errors.New("seat type is not offered for the course")
	// ErrNotEditing is returned by Revert on a create-mode form.
	ErrNotEditing = errors.New("form is not editing a persisted coupon")
	// ErrInconsistentAxis means two scope groups hold values at once. The reset
	// rules make this unreachable; seeing it is a defect.
	ErrInconsistentAxis = errors.New("inconsistent catalog scope state")
	// ErrCascadeDepth means a chain of derived resets did not settle within
	// maxCascadeDepth. The rule table makes this unreachable; seeing it is a defect.
	ErrCascadeDepth = errors.New("derivation cascade exceeded depth bound")
)

// RangeError reports a numeric attribute outside its current limits.
type RangeError struct {
	Attr  string
	Value float64
	Limit Limit
}

func (e *RangeError) Error() string {
	max := "unbounded"
	if e.Limit.Max != nil {
		max = strconv.FormatFloat(*e.Limit.Max, 'f', -1, 64)
	}
	return fmt.Sprintf("%s: %v is outside [%v, %s]", e.Attr, e.Value, e.Limit.Min, max)
}

// Message is the inline text shown next to the field.
func (e *RangeError) Message() string {
	if e.Limit.Max == nil {
		return fmt.Sprintf("Ensure this value is greater than or equal to %v.", e.Limit.Min)
	}
	return fmt.Sprintf("Ensure this value is between %v and %v.", e.Limit.Min, *e.Limit.Max)
}
