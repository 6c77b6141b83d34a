// Package sessiontest provides a contract test suite for russh sessions.
//
// The same contracts run under go test through Verify and outside of it
// through Check, which the russh CLI uses for its check command.
package sessiontest

// AllContracts returns all test cases for the contract test suite.
func AllContracts() []TestCase {
	const initialCapacity = 24

	contracts := make([]TestCase, 0, initialCapacity)

	contracts = append(contracts, coreContracts()...)
	contracts = append(contracts, channelContracts()...)
	contracts = append(contracts, fileContracts()...)
	contracts = append(contracts, errorContracts()...)

	return contracts
}
