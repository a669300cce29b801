// Package bridge translates plugin calls into GraphQL client operations and
// the client's callback results back into serializable replies.
//
// Every Query or Mutate call moves through
//
//	Created → Parsing → MalformedFailed
//	                  → Dispatched → Completed(Success | TransportFailure | GraphQLFailure)
//
// and resolves its Reply exactly once. Arguments are parsed before the client
// sees anything, so malformed input never reaches the network. When the caller
// supplies a cancel token, the in-flight operation is registered under it
// right after dispatch and removed again when the terminal callback fires,
// before the reply is produced. No failure is retried.
package bridge
