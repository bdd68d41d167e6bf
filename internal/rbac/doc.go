// Package rbac implements the role-based access control core of
// FlowBoard: the permission catalog, the resolution service that
// translates a user into their effective roles and permissions (with a
// time-bounded, explicitly invalidated cache), and the Fiber middleware
// gates consumed by the route handlers.
//
// The authorization layer fails closed: any store error during a check
// denies the request instead of granting it.
package rbac
