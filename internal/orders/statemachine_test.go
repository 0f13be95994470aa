package orders

import (
	"errors"
	"testing"

	"github.com/soukdz/souk/internal/auth"
)

func snapshot(escrow EscrowStatus, status Status) *Order {
	return &Order{EscrowStatus: escrow, Status: status}
}

func TestNextState_Table(t *testing.T) {
	withReceipt := snapshot(EscrowPendingReceipt, StatusPending)
	withReceipt.BuyerReceiptURL = "/v1/blobs/abc"

	shipped := snapshot(EscrowFundsHeld, StatusShipped)
	shipped.SellerShippingProof = "/v1/blobs/def"

	heldWithProof := snapshot(EscrowFundsHeld, StatusPending)
	heldWithProof.SellerShippingProof = "/v1/blobs/def"

	tests := []struct {
		name       string
		order      *Order
		role       auth.Role
		action     Action
		wantEscrow EscrowStatus
		wantStatus Status
		wantErr    bool
	}{
		{"buyer submits receipt", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleBuyer, ActionSubmitReceipt, EscrowPendingReceipt, StatusPending, false},
		{"receipt is set once", withReceipt, auth.RoleBuyer, ActionSubmitReceipt, "", "", true},
		{"seller cannot submit receipt", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleSeller, ActionSubmitReceipt, "", "", true},

		{"admin verifies funds", withReceipt, auth.RoleAdmin, ActionVerifyFunds, EscrowFundsHeld, StatusPending, false},
		{"verify requires receipt", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleAdmin, ActionVerifyFunds, "", "", true},
		{"buyer cannot verify funds", withReceipt, auth.RoleBuyer, ActionVerifyFunds, "", "", true},
		{"verify twice rejected", snapshot(EscrowFundsHeld, StatusPending), auth.RoleAdmin, ActionVerifyFunds, "", "", true},

		{"seller ships from funds held", snapshot(EscrowFundsHeld, StatusPending), auth.RoleSeller, ActionMarkShipped, EscrowFundsHeld, StatusShipped, false},
		{"proof is set once", shipped, auth.RoleSeller, ActionMarkShipped, "", "", true},
		{"cannot ship before verification", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleSeller, ActionMarkShipped, "", "", true},

		{"buyer confirms after shipping", shipped, auth.RoleBuyer, ActionConfirmDelivery, EscrowReleased, StatusDelivered, false},
		{"buyer confirms on proof alone", heldWithProof, auth.RoleBuyer, ActionConfirmDelivery, EscrowReleased, StatusDelivered, false},
		{"no skipping verification", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleBuyer, ActionConfirmDelivery, "", "", true},
		{"no confirmation before shipping", snapshot(EscrowFundsHeld, StatusPending), auth.RoleBuyer, ActionConfirmDelivery, "", "", true},

		{"buyer disputes pending receipt", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleBuyer, ActionOpenDispute, EscrowDisputed, StatusDisputed, false},
		{"seller disputes funds held", snapshot(EscrowFundsHeld, StatusShipped), auth.RoleSeller, ActionOpenDispute, EscrowDisputed, StatusDisputed, false},
		{"admin cannot open dispute", snapshot(EscrowFundsHeld, StatusPending), auth.RoleAdmin, ActionOpenDispute, "", "", true},
		{"no dispute on dispute", snapshot(EscrowDisputed, StatusDisputed), auth.RoleBuyer, ActionOpenDispute, "", "", true},

		{"admin releases from funds held", snapshot(EscrowFundsHeld, StatusShipped), auth.RoleAdmin, ActionReleaseToSeller, EscrowReleased, StatusDelivered, false},
		{"admin releases from dispute", snapshot(EscrowDisputed, StatusDisputed), auth.RoleAdmin, ActionReleaseToSeller, EscrowReleased, StatusDelivered, false},
		{"admin refunds from funds held", snapshot(EscrowFundsHeld, StatusPending), auth.RoleAdmin, ActionRefundBuyer, EscrowRefunded, StatusRefunded, false},
		{"admin refunds from dispute", snapshot(EscrowDisputed, StatusDisputed), auth.RoleAdmin, ActionRefundBuyer, EscrowRefunded, StatusRefunded, false},
		{"seller cannot release", snapshot(EscrowFundsHeld, StatusShipped), auth.RoleSeller, ActionReleaseToSeller, "", "", true},
		{"admin cannot release unverified funds", snapshot(EscrowPendingReceipt, StatusPending), auth.RoleAdmin, ActionReleaseToSeller, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			escrow, status, err := NextState(tt.order, tt.role, tt.action)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected rejection, got %s/%s", escrow, status)
				}
				var guardErr *GuardError
				if !errors.As(err, &guardErr) {
					t.Fatalf("expected GuardError, got %T", err)
				}
				if guardErr.Action != tt.action {
					t.Errorf("guard error action = %q, want %q", guardErr.Action, tt.action)
				}
				if guardErr.From != tt.order.EscrowStatus {
					t.Errorf("guard error state = %q, want %q", guardErr.From, tt.order.EscrowStatus)
				}
				if !errors.Is(err, ErrGuardViolation) {
					t.Error("guard error should match ErrGuardViolation")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected rejection: %v", err)
			}
			if escrow != tt.wantEscrow {
				t.Errorf("escrow = %q, want %q", escrow, tt.wantEscrow)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status, tt.wantStatus)
			}
		})
	}
}

func TestNextState_TerminalStatesRejectEverything(t *testing.T) {
	actions := []Action{
		ActionSubmitReceipt, ActionVerifyFunds, ActionMarkShipped,
		ActionConfirmDelivery, ActionOpenDispute, ActionReleaseToSeller, ActionRefundBuyer,
	}
	roles := []auth.Role{auth.RoleBuyer, auth.RoleSeller, auth.RoleAdmin}

	for _, terminal := range []EscrowStatus{EscrowReleased, EscrowRefunded} {
		for _, action := range actions {
			for _, role := range roles {
				_, _, err := NextState(snapshot(terminal, StatusDelivered), role, action)
				if !errors.Is(err, ErrGuardViolation) {
					t.Errorf("%s/%s from %s: expected guard violation, got %v", role, action, terminal, err)
				}
			}
		}
	}
}
