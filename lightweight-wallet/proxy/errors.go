package proxy

import "errors"

var errEmptyBaseURL = errors.New("proxy: base URL is required")
