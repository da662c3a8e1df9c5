package entitlement

import (
	"testing"

	"github.com/novamarket/novamarket-go/internal/model"
)

func user(role model.Role, purchased ...string) *model.Profile {
	return &model.Profile{ID: "u1", Role: role, PurchasedIDs: purchased}
}

// TestHasAccess covers the three grant paths and the denial case.
func TestHasAccess(t *testing.T) {
	free := model.Product{ID: "p1", IsFree: true}
	paid := model.Product{ID: "p2", Price: 10}

	if !HasAccess(nil, free) {
		t.Error("HasAccess(nil, free) = false, want true")
	}
	if HasAccess(nil, paid) {
		t.Error("HasAccess(nil, paid) = true, want false")
	}
	if !HasAccess(user(model.RoleAdmin), paid) {
		t.Error("HasAccess(admin, paid) = false, want true")
	}
	if !HasAccess(user(model.RoleUser, "p2"), paid) {
		t.Error("HasAccess(owner, paid) = false, want true")
	}
	if HasAccess(user(model.RoleUser, "other"), paid) {
		t.Error("HasAccess(non-owner, paid) = true, want false")
	}
}

// TestGrantIdempotent verifies granting twice leaves a single membership.
func TestGrantIdempotent(t *testing.T) {
	u := user(model.RoleUser)

	if !Grant(u, "p1") {
		t.Error("first Grant() = false, want true")
	}
	if Grant(u, "p1") {
		t.Error("second Grant() = true, want false")
	}
	if len(u.PurchasedIDs) != 1 {
		t.Errorf("purchasedIds = %v, want one entry", u.PurchasedIDs)
	}
}

// TestAction verifies the advertised affordance.
func TestAction(t *testing.T) {
	free := model.Product{ID: "p1", IsFree: true}
	paid := model.Product{ID: "p2", Price: 10}

	if got := Action(nil, free); got != "download" {
		t.Errorf("Action(nil, free) = %q, want download", got)
	}
	if got := Action(nil, paid); got != "buy" {
		t.Errorf("Action(nil, paid) = %q, want buy", got)
	}
	if got := Action(user(model.RoleUser, "p2"), paid); got != "download" {
		t.Errorf("Action(owner, paid) = %q, want download", got)
	}
}
