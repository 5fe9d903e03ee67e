package model

import "errors"

var (
	ErrAnimalNotFound   = errors.New("animal not found")
	ErrTableNotFound    = errors.New("datatable not found")
	ErrVariableNotFound = errors.New("variable not found")
	ErrFactorNotFound   = errors.New("factor not found")
)
