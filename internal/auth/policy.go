package auth

import "github.com/greg5320/mappool/internal/domain"

// Policy decides whether an identity may perform an operation.
type Policy func(id domain.Identity) error

// Check evaluates policies in order and returns the first denial.
func Check(id domain.Identity, policies ...Policy) error {
	for _, p := range policies {
		if err := p(id); err != nil {
			return err
		}
	}
	return nil
}

// RequireAuthenticated denies the anonymous identity.
func RequireAuthenticated(id domain.Identity) error {
	if !id.IsAuthenticated() {
		return domain.ErrAuthenticationRequired("authentication required")
	}
	return nil
}

// RequireStaff allows staff only.
func RequireStaff(id domain.Identity) error {
	if err := RequireAuthenticated(id); err != nil {
		return err
	}
	if !id.IsStaff {
		return domain.ErrForbidden("staff only")
	}
	return nil
}

// OwnerOrStaff allows staff and the owner of a resource.
func OwnerOrStaff(ownerID int64) Policy {
	return func(id domain.Identity) error {
		if err := RequireAuthenticated(id); err != nil {
			return err
		}
		if !id.IsStaff && !id.Owns(ownerID) {
			return domain.ErrForbidden("only the owner or staff may access this pool")
		}
		return nil
	}
}

// OwnerOnly allows the owner of a resource.
func OwnerOnly(ownerID int64) Policy {
	return func(id domain.Identity) error {
		if err := RequireAuthenticated(id); err != nil {
			return err
		}
		if !id.Owns(ownerID) {
			return domain.ErrForbidden("only the owner may perform this action")
		}
		return nil
	}
}
