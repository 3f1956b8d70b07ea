// Package mock_provider holds a hand-maintained stand-in for the mockgen
// output go generate would otherwise produce here; the go:generate
// directive documents the command this package's mocks.go follows.
package mock_provider

//go:generate go run go.uber.org/mock/mockgen -destination=./mocks.go -package=mock_provider github.com/xearthlayer/xearthlayer/provider Fetcher
