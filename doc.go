// Package ejreconcile implements the declarative reconciliation engine
// behind an ejabberd management portal. Operators describe the desired
// state of an XMPP deployment — groups, members, chat rooms and their
// access policy — as a single on-disk document. The engine continuously
// converges the live server toward that document and drives a privileged
// admin-bot account that participates in every managed room.
//
// # Reading the document
//
// The config store owns the on-disk document and its lock file:
//
//	st, err := store.Open(store.Config{Folder: "/var/lib/ejreconcile"})
//	if err != nil { log.Fatal(err) }
//	doc, sha, err := st.Read()
//
// # Mutating state
//
// Every mutation — from an HTTP handler, a bot command, or the file
// watcher — goes through the mutator:
//
//	result := m.SwapState(ctx, "operator edit", func(d document.Document) document.Document {
//	    d.Members = append(d.Members, newMember)
//	    return d
//	})
//	if !result.OK { log.Printf("swap rejected: %v", result.Errors) }
//
// The mutator validates the candidate document, runs the sync engine
// against the live ejabberd server, and persists the effective document
// returned by the engine — never the caller's unvalidated candidate.
package ejreconcile
