// Package scheduler implements HostAssignment: a pure function
// that turns a service spec plus the current state of the world into a
// set of daemons to add and a set to remove. It holds no state and
// calls nothing; every input arrives as an argument and every output
// is a plain value, so the reconciler can call it synchronously on
// every pass and the test suite can exercise it with nothing but Go
// values.
package scheduler
