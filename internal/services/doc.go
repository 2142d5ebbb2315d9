// Package services implements the remote collaborators of the idle loop.
//
// # Session Provider
//
// The [Provider] interface is the narrow surface the core uses to authenticate
// and to mark items active. [SessionGateway] implements it against a local
// gateway process that wraps the real client protocol, the same way a proxy
// hides a third-party API behind plain JSON endpoints:
//
//	POST /session/logon   {account_name, password, login_key}
//	POST /session/code    {code}
//	POST /session/games   {app_ids}
//	POST /session/persona {state}
//	POST /session/logoff
//
// Transport failures are retried by [retryablehttp] before surfacing as
// [shared.ErrNetworkTransient].
//
// # Community Endpoints
//
// [CommunityClient] owns the one cookie jar shared by every HTTP-issuing
// component. Cookies are only ever added or replaced by name. Each request
// waits on a [rate.Limiter]. A response is an access obstacle when it is a
// 403, lands under /parental/, or carries the parental notice marker.
//
// # Page Parsing
//
// [PageParser] turns one status listing page into [BadgePage] candidates.
// [BadgePageParser] implements it with goquery selectors; entries with zero
// remaining drops are returned as-is and filtered by the scanner.
//
// # Error Handling
//
//   - [shared.ErrAccessObstacle] : page blocked by the content lock
//   - [shared.ErrNetworkTransient] : transport failure or 5xx after retries
//   - [shared.ErrAPIRequest] : unexpected status or body from a remote
package services
