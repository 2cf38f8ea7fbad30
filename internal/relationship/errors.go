package relationship

import "errors"

var (
	// ErrInvalidSelfRequest is returned when both sides of a pair are the same user.
	ErrInvalidSelfRequest = errors.New("cannot relate a user to themselves")
	// ErrUnknownUser is returned when an id does not resolve in the user directory.
	ErrUnknownUser = errors.New("unknown user")
	// ErrDuplicateRequest signals that an identical pending request already exists.
	// Callers should treat it as a no-op rather than a failure.
	ErrDuplicateRequest = errors.New("friend request already pending")

	ErrAlreadyFriends     = errors.New("users are already friends")
	ErrNoSuchRequest      = errors.New("no matching pending friend request")
	ErrNoSuchRelationship = errors.New("users are not friends")
	ErrUnauthorized       = errors.New("not permitted to perform this transition")

	// ErrBusy means every apply attempt lost a race. It is the only error
	// worth retrying unchanged.
	ErrBusy = errors.New("relationship store busy, try again")

	// ErrConflict is returned by Store.Apply when the expected version is stale.
	ErrConflict = errors.New("relationship store version conflict")
	// ErrCorruptCollection is returned when loaded records violate the pair invariants.
	ErrCorruptCollection = errors.New("corrupt relationship collection")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidSelfRequest, "invalid_self_request"},
	{ErrUnknownUser, "unknown_user"},
	{ErrDuplicateRequest, "duplicate_request"},
	{ErrAlreadyFriends, "already_friends"},
	{ErrNoSuchRequest, "no_such_request"},
	{ErrNoSuchRelationship, "no_such_relationship"},
	{ErrUnauthorized, "unauthorized"},
	{ErrBusy, "busy"},
}

// Code maps an error returned by the Service to its stable wire code.
// Anything outside the taxonomy is "internal".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
