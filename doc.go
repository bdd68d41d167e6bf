// Package main provides the entry point for the FlowBoard service.
// FlowBoard is a kanban-style task board with local and OpenID Connect
// authentication and role-based access control gating every board and
// task operation. It runs a web server using the Fiber framework that
// exposes a JSON API consumed by the board client, and uses gorm for
// data persistence of users, roles, permissions, columns and tasks.
package main
