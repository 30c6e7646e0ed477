// Package directory implements the multi-server authentication and
// directory-query engine. Given a username and password it walks a
// prioritized list of directory servers, performs the bind sequence for each
// server's configured bind strategy, locates the user's entry, verifies
// credentials, evaluates allow/deny policy and resolves (optionally nested)
// group memberships.
//
// The package delegates the wire protocol to go-ldap and owns everything
// above it: value escaping, the one Entry value type, the per-server state
// machine and its outcome taxonomy, the policy evaluator, the group resolver
// and the attribute token engine.
package directory
