package proc

// processNotFoundError signals an unknown process id for 404 mapping.
type processNotFoundError struct{ id string }

func (e processNotFoundError) Error() string { return "process not found: " + e.id }

func errProcessNotFound(id string) error { return processNotFoundError{id: id} }

// IsProcessNotFound reports whether err indicates a missing process id.
func IsProcessNotFound(err error) bool {
	_, ok := err.(processNotFoundError)
	return ok
}
