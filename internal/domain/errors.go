package domain

import "errors"

// ErrNoSuchUser failed to validate the credential
var ErrNoSuchUser = errors.New("No such user or password is incorrect")

// ErrDuplicatedUser unique key constraint violation
var ErrDuplicatedUser = errors.New("Username or email is already registered")

// ErrUserTooManyRetry login attempts exceeded the configured maximum
var ErrUserTooManyRetry = errors.New("Too many login attempts, try again later")

// ErrInvalidSample malformed playback sample, the update is a no-op
var ErrInvalidSample = errors.New("Invalid playback sample")

// ErrNoSuchCourse course id not present in the catalog
var ErrNoSuchCourse = errors.New("No such course")

// ErrNoSuchLesson lesson id not present in the catalog
var ErrNoSuchLesson = errors.New("No such lesson")

// ErrPersistenceUnavailable document store unreachable, recovered via retry
var ErrPersistenceUnavailable = errors.New("Persistence service unavailable")
