// Package expo drives the Expo CLI of a project through its package runner
// (`yarn expo ...` or `npx expo ...`).
//
// Child processes receive an explicit environment built from the process
// environment, the project's dotenv file and NODE_ENV=production; the
// environment of expo-up itself is never modified.
package expo
