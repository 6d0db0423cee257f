// Package models holds the account service domain types shared by the store
// adapters, the flow controller and the HTTP layer.
package models

// Stored attribute names. They double as the field keys accepted by the
// store adapters' ScanByField and UpdateFields.
const (
	FieldEmail     = "email"
	FieldPassword  = "password"
	FieldUUID      = "uuid"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldPhone     = "phone"
	FieldAddress   = "address"
	FieldIsAdmin   = "isAdmin"
	FieldReviews   = "reviews"
)
