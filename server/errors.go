package server

import "errors"

var (
	ErrInvalidPort         = errors.New("invalid port number")
	ErrInvalidPasswordCost = errors.New("password cost out of range")
	ErrNotFound            = errors.New("no records found")
	ErrNoID                = errors.New("no ID supplied")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrStoreClosed         = errors.New("store is closed")

	ErrInvalidEmail     = errors.New("invalid email provided")
	ErrNoPassword       = errors.New("no password provided")
	ErrNoUsername       = errors.New("no username provided")
	ErrUsernameTooShort = errors.New("username too short")
	ErrEmailTaken       = errors.New("email already taken")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrNoSession        = errors.New("no such session")
	ErrUnknownUser      = errors.New("no user found")
	ErrWrongPassword    = errors.New("your email or password was incorrect")
)
