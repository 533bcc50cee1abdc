package models

import "errors"

var (
	ErrRedisConnection = errors.New("redis connection error")
	ErrRedisGet        = errors.New("redis get error")
	ErrRedisSet        = errors.New("redis set error")
)

var (
	ErrMissingParams          = errors.New("missing required parameters")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired")
	ErrDuplicateCheckin       = errors.New("student already checked in")
	ErrLocationRequired       = errors.New("client location required")
	ErrSessionMissingGeofence = errors.New("session has no geofence location")
	ErrOutOfRange             = errors.New("location outside allowed radius")
)

var (
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseQuery      = errors.New("database query error")
	ErrDatabaseInsert     = errors.New("database insert error")
	ErrRecordNotFound     = errors.New("record not found")
	ErrDuplicateRecord    = errors.New("duplicate record")
)
