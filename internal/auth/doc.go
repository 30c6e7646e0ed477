// Package auth ties the authentication building blocks together: the
// directory authentication engine, local password fallback, account
// provisioning and group synchronization.
//
// The Service type is the single login entry point for the web layer. It
// decides whether a login name belongs to a local account or a directory
// account, runs the matching provider, and translates the engine's typed
// outcome into the deliberately vague errors shown to users (a failed
// directory login never reveals whether the user exists).
package auth
