// Package auth provides the authentication providers for FlowBoard:
// local database credentials (Argon2id) and OpenID Connect. Authorization
// is handled separately by the rbac package.
package auth
