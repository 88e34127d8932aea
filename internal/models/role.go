package models

const (
	RoleUser    = "user"
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)
