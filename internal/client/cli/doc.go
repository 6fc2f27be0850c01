// Package cli provides the interactive profilekeeper terminal client.
//
// It wires configuration, the local session, the identity client, the
// record and blob stores and the profile coordinator, then runs a REPL in
// which every command edits one profile field.
//
// Key features:
//   - Login with email and password
//   - Show the live profile
//   - Edit photo, name, username, description, email and password
//   - Delete the account / Logout
//
// The REPL is started via App.Run(ctx), which blocks until the user exits
// or the session ends. See App and runREPL for details.
package cli
