// Package oauth implements the authorization-code and access-token lifecycle
// for an OAuth2 provider: issuing, persisting, validating, and revoking
// authorization codes and access/refresh token pairs on behalf of registered
// clients and authenticated users.
//
// Two layers compose the package. Service owns entity construction,
// persistence, and credential validation, backed by a storage.Store.
// CodeGrant implements GrantModel, the fixed callback contract a generic
// OAuth2 engine drives during the authorization-code flow; it delegates all
// state mutation to the Service.
//
// # Basic Usage
//
//	svc := oauth.NewService(memory.New())
//	grant := oauth.NewCodeGrant(svc)
//
//	client, err := grant.GetClient(ctx, "my-app", nil)
//
// Expected protocol negatives (bad credentials, unknown codes or tokens,
// rejected scopes) are reported as the sentinel errors below so that callers
// can errors.Is on them. Anything else is an infrastructure fault and
// propagates unchanged.
package oauth

import (
	"github.com/dpup/grantkit/errors"
	"google.golang.org/grpc/codes"
)

// Standard OAuth2 errors.
var (
	ErrInvalidClient = errors.NewC("invalid_client", codes.Unauthenticated)
	ErrInvalidGrant  = errors.NewC("invalid_grant", codes.InvalidArgument)
	ErrInvalidScope  = errors.NewC("invalid_scope", codes.InvalidArgument)
	ErrAccessDenied  = errors.NewC("access_denied", codes.PermissionDenied)
)

// AdminScope is the only scope with a business rule attached: requesting it
// requires the user to hold the admin role.
const AdminScope = "admin"

// AdminRole is the user role that unlocks AdminScope.
const AdminRole = "admin"
