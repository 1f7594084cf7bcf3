// Package observer provides a generic, thread-safe one-to-many callback
// fan-out. It is used to dispatch RPC signals to any number of handlers
// without coupling the RPC layer to a particular handler signature.
//
// An Observer node plays one of two roles:
//
//   - Subject: the named broadcast point. Call invokes the handler of every
//     live observer attached to it.
//   - Observer: a node holding a handler. Observe attaches it to a subject.
//
// Attachments are recorded on both nodes, so either side can detect that the
// other one was shut down. Shutdown is terminal and idempotent: once shut
// down, a node never holds or invokes a handler again and drops all of its
// attachments. Subjects prune observers that were shut down lazily, during
// the next Call.
//
// Components:
//
//   - Observer[H]: a single node, parameterized over the handler type H.
//   - ObserverScope[H]: owns one observer node and shuts it down when the
//     owner is done with it.
//   - ObserverHash[H]: maps identifiers to subjects, creating a subject the
//     first time an observer is attached to it.
//
// Handlers are invoked while the subject's lock is held. A handler must not
// call back into the same subject and should return quickly.
package observer
