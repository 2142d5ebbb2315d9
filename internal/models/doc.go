// Package models defines the domain values shared by the idle loop.
//
// The package contains two categories of types:
//
// 1. Values produced by the remote service
//   - [ProgressItem] : A unit of in-progress work with its remaining drops
//
// 2. Values supplied by the operator
//   - [Credentials] : Account name, password and optional unlock PIN
//   - [SelectionSet] : Optional allow-list of item ids
//   - [PersonaState] : Presence state forwarded to the session provider
//   - [Visibility] : Public or private profile settings
//
// All values are immutable once constructed; scans produce fresh items every cycle.
package models
