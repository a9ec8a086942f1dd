package cerr

// InterruptedMessage is the fixed caller-facing message for operations
// aborted through their cancellation signal.
const InterruptedMessage = "Interrupted"

// Interrupted returns a Canceled error with InterruptedMessage.
func Interrupted(underlying error) *Error {
	return NewError(Canceled, InterruptedMessage, underlying)
}

// IsInterrupted reports whether err was produced by Interrupted.
func IsInterrupted(err error) bool {
	return IsCode(err, Canceled) && Message(err) == InterruptedMessage
}
