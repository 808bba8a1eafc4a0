// Package project resolves everything the workflows need to know about the
// Expo project in the working directory: the package runner, the Expo CLI,
// the child environment and the validated public app config.
package project
