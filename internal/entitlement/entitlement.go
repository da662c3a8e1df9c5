// internal/entitlement/entitlement.go
// Package entitlement defines who may open or download a product. The rules
// are evaluated in one place so the download and course-player gates cannot
// drift apart.
package entitlement

import (
	"github.com/novamarket/novamarket-go/internal/model"
)

// HasAccess reports whether the user may open the product's content. Free
// products are open to everyone, admins see everything, and otherwise the
// product must be in the user's purchased set. A nil user only ever has
// access to free products.
func HasAccess(user *model.Profile, product model.Product) bool {
	if product.IsFree {
		return true
	}
	if user == nil {
		return false
	}
	if user.Role == model.RoleAdmin {
		return true
	}
	return Owns(user, product.ID)
}

// Owns reports whether the product ID is in the user's purchased set.
func Owns(user *model.Profile, productID string) bool {
	if user == nil {
		return false
	}
	for _, owned := range user.PurchasedIDs {
		if owned == productID {
			return true
		}
	}
	return false
}

// Grant appends the product to the user's purchased set. Granting an
// already-owned product changes nothing; the operation is idempotent and
// reports whether the set changed.
func Grant(user *model.Profile, productID string) bool {
	if Owns(user, productID) {
		return false
	}
	user.PurchasedIDs = append(user.PurchasedIDs, productID)
	return true
}

// Action returns the affordance the storefront should advertise on a product
// for the given (possibly nil) user: "download" when access is already
// granted, otherwise "buy".
func Action(user *model.Profile, product model.Product) string {
	if HasAccess(user, product) {
		return "download"
	}
	return "buy"
}
