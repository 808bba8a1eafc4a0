// Package integration runs the release and rollback workflows end to end:
// a scripted package runner stands in for the Expo CLI and an httptest
// server stands in for the update server.
package integration
