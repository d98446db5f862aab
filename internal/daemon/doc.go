// Package daemon imports plan files dropped into an inbox directory and
// keeps interrupted cascades moving.
//
// # Architecture
//
//   - FileWatcher: fsnotify watch on the inbox, reporting *.json, *.yaml and
//     *.yml files
//   - Daemon: debounces file events, imports each plan through the sync
//     engine, and replays pending cascades on a timer
//
// Every file the daemon handles leaves the inbox: imported files move to
// processed/, unreadable or rejected ones to failed/. Neither subdirectory
// is watched.
//
// # Usage
//
//	engine := sync.New(s, sync.Options{Journal: j})
//
//	d, err := daemon.New(engine, "/home/me/plans/inbox", uid)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Debouncing
//
// Editors often save a file as a create followed by one or more writes. The
// daemon records the time of the last event per path and imports a file
// only once it has been quiet for Config.DebounceInterval, so one save
// produces one import.
package daemon
