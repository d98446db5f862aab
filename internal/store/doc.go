// Package store provides the hierarchical document store that durably holds
// users' workout plans.
//
// Documents live at paths made of alternating collection and id segments:
//
//	Users/{uid}/Plans/{pid}/Days/{did}/Exercise/{eid}
//	Exercises/{catalogId}
//
// The SQLite implementation keeps one row per document in an embedded
// database opened in WAL mode, so concurrent readers never block a writer.
// Bodies are JSON objects; Update merges a partial body with json_patch and
// List filters with json_extract and json_each.
//
// Each call touches exactly one row and is atomic on its own. Nothing
// cascades: deleting a Day leaves its Exercise documents in place until they
// are deleted explicitly. Callers that need several writes to land together
// use RunInTx, or rely on the version column through UpdateIfVersion for
// optimistic concurrency on a single document.
//
// Example:
//
//	s, err := store.Open(".fitlife/fitlife.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	id, err := s.Create(ctx, store.DaysCol(uid, pid), store.Fields{"name": "New Day", "planId": pid})
package store
