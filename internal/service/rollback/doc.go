// Package rollback implements `expo-up rollback`: ask the update server to
// serve the previous update, or the update embedded in the native build, for
// the app's current runtime version.
package rollback
