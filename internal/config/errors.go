package config

import "errors"

var (
	// ErrWebServerPortCanNotBeZero is returned when the webserver listening port is unset.
	ErrWebServerPortCanNotBeZero = errors.New("webserver port can not be 0")

	// ErrEmptyURL is returned when the webserver base url is unset.
	ErrEmptyURL = errors.New("webserver url can not be empty")
)
