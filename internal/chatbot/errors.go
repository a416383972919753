package chatbot

import "errors"

// Sentinel errors returned by the Service. Handlers map these to HTTP status
// codes without leaking provider or storage details to clients.
var (
	// ErrEmptyQuery is returned when the question is empty after trimming.
	ErrEmptyQuery = errors.New("chatbot: query must not be empty")

	// ErrUnavailable is returned when an external provider call (embedding,
	// retrieval, generation) fails or times out. The caller receives no
	// partial reply.
	ErrUnavailable = errors.New("chatbot: assistant unavailable")

	// ErrStorage is returned when reading or writing local state (history,
	// habits, the exchange log) fails. Distinct from ErrUnavailable so
	// handlers can report an internal fault rather than a provider outage.
	ErrStorage = errors.New("chatbot: storage failure")
)
