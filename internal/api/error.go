package api

type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
	// Body replaces the default ApiError payload when set.
	Body any
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.ErrorLog
}

type ApiError struct {
	Error string `json:"message"`
}
