// Package server wires configuration, stores, the auth engine, mail,
// payments, and metrics into one echo application.
//
// [NewApp] builds the handler and is shared by the long-running server
// ([Run]) and the Lambda entry point.
package server
