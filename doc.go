// Package todospa provides the shared plumbing for a route-driven client state core:
// structured logging, sentinel errors and a CloudEvents based observer pattern.
//
// The state loop itself lives in subpackages:
//
//	store    - immutable State, Patch variants, Merge and the Update Stream
//	route    - route segments, path patterns and transition detection
//	service  - reactive services run after every state transition
//	action   - navigation and remote todo actions
//	todoapi  - JSON:API client for the todo service
//	render   - text rendering of each revision
//	server   - the demo JSON:API todo service
//	app      - composition root wiring everything together
//
// Basic usage:
//
//	cfg, err := app.LoadConfig("todospa.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	a, err := app.New(cfg, app.WithLogger(todospa.NewLogrusLogger(logrus.New())))
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := a.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package todospa
