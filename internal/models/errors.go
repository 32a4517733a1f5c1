package models

import "errors"

// Fatal error classes. Every one of them aborts the run.
var (
	ErrConfig     = errors.New("invalid configuration")
	ErrConnection = errors.New("connection failed")
	ErrTimeout    = errors.New("timed out")
	ErrQuery      = errors.New("query failed")
)
