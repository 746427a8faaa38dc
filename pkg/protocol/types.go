package protocol

// Device describes a router model speaking this protocol.
type Device interface {
	Name() string
	ID() string
	Address() Address
	Outputs() int
	Destinations() int
}
