// Package bundle produces the artifact uploaded by `expo-up release`.
//
// Build exports the JavaScript bundle with the Expo CLI and stores a snapshot
// of the public app config next to it. Archive compresses the output
// directory into "<unix millis>.zip" with entries relative to that directory,
// so extracting the archive reproduces the export layout directly.
package bundle
