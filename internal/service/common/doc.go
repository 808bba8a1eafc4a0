// Package common holds helpers shared by the release and rollback services.
//
// It provides the HTTP client for the update server endpoint with bounded
// call timeouts, the release lock file guarding the output directory, and
// detection of the local actor (hostname/username) for audit logs.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
