package incentive

import "fmt"

// Authorization policies. Each service operation evaluates exactly one of
// these at its boundary; role branching never happens per field.

// authorizePointChange allows an admin, the driver's own sponsor, or the
// driver themself (self-initiated debits such as a purchase).
func authorizePointChange(actor Actor, driver DriverProfile) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSponsor:
		if !driver.SponsorID.IsZero() && actor.SponsorID == driver.SponsorID {
			return nil
		}
	case RoleDriver:
		if actor.DriverProfileID == driver.DriverProfileID {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot change points for driver %s", ErrUnauthorized, driver.DriverProfileID)
}

// authorizeDriverSelf requires the actor to be a driver and returns their
// profile id.
func authorizeDriverSelf(actor Actor) (DriverProfileID, error) {
	if actor.Role != RoleDriver || actor.DriverProfileID.IsZero() {
		return DriverProfileID{}, fmt.Errorf("%w: driver access required", ErrUnauthorized)
	}
	return actor.DriverProfileID, nil
}

// authorizeOrderView allows the owning driver, the owning sponsor, or an admin.
func authorizeOrderView(actor Actor, order Order) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSponsor:
		if actor.SponsorID == order.SponsorID {
			return nil
		}
	case RoleDriver:
		if actor.DriverProfileID == order.DriverProfileID {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot view order %s", ErrUnauthorized, order.OrderID)
}

// authorizeOrderTransition allows an admin on any order and a sponsor on
// orders they own. A driver may drive exactly one transition: cancelling
// their own order while it is still pending.
func authorizeOrderTransition(actor Actor, order Order, attempted OrderStatus) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSponsor:
		if actor.SponsorID == order.SponsorID {
			return nil
		}
	case RoleDriver:
		if attempted == OrderStatusCancelled && actor.DriverProfileID == order.DriverProfileID {
			if order.Status != OrderStatusPending {
				return IllegalTransitionError{Current: order.Status, Attempted: OrderStatusCancelled}
			}
			return nil
		}
	}
	return fmt.Errorf("%w: cannot transition order %s", ErrUnauthorized, order.OrderID)
}

// authorizeDriverCancel allows only the owning driver, and only while the
// order is still pending.
func authorizeDriverCancel(actor Actor, order Order) error {
	if actor.Role != RoleDriver || actor.DriverProfileID != order.DriverProfileID {
		return fmt.Errorf("%w: not your order", ErrUnauthorized)
	}
	if order.Status != OrderStatusPending {
		return IllegalTransitionError{Current: order.Status, Attempted: OrderStatusCancelled}
	}
	return nil
}

// authorizeSponsorScope allows an admin on any sponsor and a sponsor user on
// their own organization.
func authorizeSponsorScope(actor Actor, sponsorID SponsorID) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSponsor:
		if actor.SponsorID == sponsorID {
			return nil
		}
	}
	return fmt.Errorf("%w: sponsor or admin access required", ErrUnauthorized)
}

// authorizeDriverView allows the driver themself, their sponsor, or an admin.
func authorizeDriverView(actor Actor, driver DriverProfile) error {
	switch actor.Role {
	case RoleAdmin:
		return nil
	case RoleSponsor:
		if !driver.SponsorID.IsZero() && actor.SponsorID == driver.SponsorID {
			return nil
		}
	case RoleDriver:
		if actor.DriverProfileID == driver.DriverProfileID {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot view driver %s", ErrUnauthorized, driver.DriverProfileID)
}
