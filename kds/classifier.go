package kds

import "github.com/yeremiapane/restaurant-orders/models"

// RoleClassifier decides the role a connection is registered with. declared
// is the client_type the client sent; claim is the staff role from a verified
// token and is empty for anonymous connections.
type RoleClassifier interface {
	Classify(declared Role, claim string) Role
}

// SelfDeclaredClassifier trusts whatever the client declares.
type SelfDeclaredClassifier struct{}

func (SelfDeclaredClassifier) Classify(declared Role, _ string) Role {
	return declared
}

// TokenClassifier only grants staff roles backed by a token claim. Admin
// tokens may declare any role, kitchen tokens kitchen or customer, and
// everything else is a customer.
type TokenClassifier struct{}

func (TokenClassifier) Classify(declared Role, claim string) Role {
	switch claim {
	case models.RoleAdmin:
		return declared
	case models.RoleKitchen:
		if declared == RoleKitchen {
			return RoleKitchen
		}
	}
	return RoleCustomer
}

// ClassifierFor maps the WS_ROLE_MODE setting to a classifier.
func ClassifierFor(mode string) RoleClassifier {
	if mode == "token" {
		return TokenClassifier{}
	}
	return SelfDeclaredClassifier{}
}
