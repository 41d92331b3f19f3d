// Package main hosts the mediactl controller CLI.
//
// mediactl launches mediaworker processes, decodes their framed results and
// progress, and records every finished job in the history database. It also
// offers workspace maintenance, a dependency status view, a controller log
// viewer and configuration scaffolding. Process handling lives in internal/supervisor; this package only
// wires configuration and presentation around it.
package main
