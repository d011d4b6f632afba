package t_aio

// Kind selects the subsystem a persistence call is dispatched to, chosen by
// the scheme of the call's url. The kind's name is also the "aio" label on
// the in-flight metrics.
type Kind int

const (
	// Echo answers echo:// urls with the encoded request body.
	Echo Kind = iota

	// Network sends http(s) urls to a remote server.
	Network

	// Store serves scheme-less urls from the local record store.
	Store
)

func (k Kind) String() string {
	switch k {
	case Echo:
		return "echo"
	case Network:
		return "network"
	case Store:
		return "store"
	default:
		panic("invalid aio kind")
	}
}

// Submission is the request half of an aio round trip. Exactly one of the
// per-kind fields is set, matching Kind.
type Submission struct {
	Kind    Kind
	Echo    *EchoSubmission
	Network *NetworkSubmission
	Store   *StoreSubmission
}

func (s *Submission) String() string {
	switch s.Kind {
	case Echo:
		return s.Echo.String()
	case Network:
		return s.Network.String()
	case Store:
		return s.Store.String()
	default:
		panic("invalid aio submission")
	}
}

// Completion mirrors the Submission it answers and carries the same Kind.
type Completion struct {
	Kind    Kind
	Echo    *EchoCompletion
	Network *NetworkCompletion
	Store   *StoreCompletion
}

func (c *Completion) String() string {
	switch c.Kind {
	case Echo:
		return c.Echo.String()
	case Network:
		return c.Network.String()
	case Store:
		return c.Store.String()
	default:
		panic("invalid aio completion")
	}
}
