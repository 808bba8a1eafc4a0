// Package release implements `expo-up release`: export the bundle, compress
// it and upload it to the update server.
//
// The archive and the output directory are removed after every attempt,
// successful or not, before the final status is reported.
package release
