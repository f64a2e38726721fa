package submanager

// Caller is the authenticated identity an operation runs on behalf of.
type Caller struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// OwnerFilterFor returns the visibility filter for caller.
// Admins see every record; other callers only see their own.
func OwnerFilterFor(caller Caller) OwnerFilter {
	if caller.IsAdmin {
		return OwnerFilter{}
	}
	return OwnerFilter{OwnerID: caller.UserID}
}

// RequireAdmin returns ErrAdminRequired unless caller is an admin.
func RequireAdmin(caller Caller) error {
	if !caller.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}
