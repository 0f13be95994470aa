package orders

import "github.com/soukdz/souk/internal/auth"

// NextState is the escrow transition table. Given an order snapshot, the
// acting role, and the requested action it returns the escrow status and
// business status the order moves to, or a GuardError naming the action and
// the current state.
//
// The function is pure: it never touches storage and has no side effects.
// All status comparisons in the codebase live here; callers read the current
// row, ask this function, and write the result inside the store's atomic
// update so races are resolved by the storage engine.
func NextState(o *Order, role auth.Role, action Action) (EscrowStatus, Status, error) {
	reject := func() (EscrowStatus, Status, error) {
		return "", "", &GuardError{Action: action, From: o.EscrowStatus}
	}

	// Terminal states accept nothing.
	if o.EscrowStatus.IsTerminal() {
		return reject()
	}

	switch action {
	case ActionSubmitReceipt:
		// Receipt is attached without advancing custody; verification is
		// an admin act. Set-once.
		if role != auth.RoleBuyer || o.EscrowStatus != EscrowPendingReceipt || o.BuyerReceiptURL != "" {
			return reject()
		}
		return EscrowPendingReceipt, o.Status, nil

	case ActionVerifyFunds:
		if role != auth.RoleAdmin || o.EscrowStatus != EscrowPendingReceipt || o.BuyerReceiptURL == "" {
			return reject()
		}
		return EscrowFundsHeld, o.Status, nil

	case ActionMarkShipped:
		// Proof is set-once; the non-empty check is the service's job
		// since the machine only sees the snapshot.
		if role != auth.RoleSeller || o.EscrowStatus != EscrowFundsHeld || o.SellerShippingProof != "" {
			return reject()
		}
		return EscrowFundsHeld, StatusShipped, nil

	case ActionConfirmDelivery:
		if role != auth.RoleBuyer || o.EscrowStatus != EscrowFundsHeld {
			return reject()
		}
		if o.Status != StatusShipped && o.SellerShippingProof == "" {
			return reject()
		}
		return EscrowReleased, StatusDelivered, nil

	case ActionOpenDispute:
		if role != auth.RoleBuyer && role != auth.RoleSeller {
			return reject()
		}
		if o.EscrowStatus != EscrowPendingReceipt && o.EscrowStatus != EscrowFundsHeld {
			return reject()
		}
		return EscrowDisputed, StatusDisputed, nil

	case ActionReleaseToSeller:
		if role != auth.RoleAdmin {
			return reject()
		}
		if o.EscrowStatus != EscrowFundsHeld && o.EscrowStatus != EscrowDisputed {
			return reject()
		}
		return EscrowReleased, StatusDelivered, nil

	case ActionRefundBuyer:
		if role != auth.RoleAdmin {
			return reject()
		}
		if o.EscrowStatus != EscrowFundsHeld && o.EscrowStatus != EscrowDisputed {
			return reject()
		}
		return EscrowRefunded, StatusRefunded, nil
	}

	return reject()
}
