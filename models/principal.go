package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Role string

const (
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Principal is the authenticated caller. Every service call receives it
// explicitly; ownership checks use its ID and Organization.
type Principal struct {
	ID           primitive.ObjectID
	Role         Role
	Organization string
	Active       bool
}
