package hashwatch

// query is the one client-facing operation the Subscriber serves: resolve a
// HashSpec to its current GitHashes, waiting if a computation is already in
// flight.
type query struct {
	spec  HashSpec
	reply chan reply
}
