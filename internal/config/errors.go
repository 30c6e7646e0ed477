package config

import "errors"

var (
	// ErrWebServerPortCanNotBeZero is returned when the webserver listening port is not set.
	ErrWebServerPortCanNotBeZero = errors.New("webserver port can not be zero")

	// ErrEmptyURL is returned when the webserver base url is not set.
	ErrEmptyURL = errors.New("webserver url can not be empty")
)
