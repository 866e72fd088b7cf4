package feeders

import (
	"errors"
)

var (
	ErrInvalidStructure   = errors.New("expected pointer to struct")
	ErrEmptyPrefix        = errors.New("env: prefix cannot be empty")
	ErrUnsupportedFormat  = errors.New("unsupported config file format")
	ErrFieldCannotBeSet   = errors.New("field cannot be set")
	ErrEnvValueConversion = errors.New("cannot convert environment value")
)
