package api

// Subsystem is a server exposing records to clients.
type Subsystem interface {
	String() string
	Start(chan<- error)
	Stop() error
}
