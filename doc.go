// Package main provides the entry point for the DirGate directory
// authentication gateway. It runs a web service using the Fiber framework
// that authenticates users against one or more prioritized directory servers
// and keeps identity and group data synchronized into a local user store.
// The application uses gorm for data persistence and go-ldap for the
// directory protocol.
package main
