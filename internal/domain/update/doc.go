// Package update contains the domain model shared by the release and rollback
// workflows: target platforms, rollback kinds and the subset of the Expo app
// config the update server needs.
package update
