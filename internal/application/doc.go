// Package application wires the resolved configuration into the HTTP
// inspection API and server, keeping the main package focused on parsing
// arguments and orchestration.
package application
