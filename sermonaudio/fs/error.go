package fs

// Error is a local filesystem failure while preparing or publishing a file.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return "filesystem " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
