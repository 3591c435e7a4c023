package ports

// Frontend defines the interface for the user-facing side of the analyzer
type Frontend interface {
	// Start starts the frontend and blocks until it stops or fails
	Start() error

	// Stop stops the frontend
	Stop() error
}
