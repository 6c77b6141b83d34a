// Package mock provides controllable implementations of russh.Session,
// russh.Channel, russh.FileSystem and russh.File for testing purposes.
//
// They are built on testify/mock, so expectations are declared with On and
// verified with AssertExpectations.
//
// Usage:
//
//	s := mock.NewSession()
//	s.On("Run", mock.Anything, "uptime").Return(&russh.Result{Stdout: "up 3 days\n"}, nil)
//	// pass 's' to your logic
package mock
