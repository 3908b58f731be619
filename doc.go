// Package quizgate is the API gateway in front of the quiz/blog platform services.
// It composes independently deployed CRUD services (users, quizzes, posts, courses,
// scores, comments, ...) behind one origin.
//
// Components:
//   - cache: two-tier JSON document cache. Remote tier (Redis) is primary, local
//     in-process tier is always written and serves reads when the remote tier is
//     down or misses.
//   - upstream: prefix routing table, retrying reverse proxy, JSON fetch client.
//   - aggregate: composite read endpoints with settle-all fan-out and partial
//     failure tolerance. Only the primary resource of an endpoint can fail it.
//   - realtime: websocket hub with topic rooms (user-<id>, quiz-<id>).
//   - health: upstream liveness probes, cache stats, request and system metrics.
//
// Keys:
//
//	quiz_<id>               - aggregated quiz detail
//	quizzes_<params>        - aggregated quiz list
//	dashboard_stats         - dashboard counters
//	user_profile_<id>       - aggregated user profile
//	category_<id>           - aggregated category detail
//	search_<params>         - search results
//
// Invalidation is caller-driven (pattern or related-key); aggregated documents
// otherwise live for their TTL.
package quizgate
