package aio

// Message is a payload handed to a plugin for delivery to an external
// system. Addr is plugin specific, Done is called exactly once.
type Message struct {
	Addr []byte
	Body []byte
	Done func(bool, error)
}

type Plugin interface {
	String() string
	Type() string
	Start(chan<- error) error
	Stop() error
	Enqueue(*Message) bool
}
