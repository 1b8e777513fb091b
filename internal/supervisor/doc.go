// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package supervisor provides process supervision for Tastedeck using suture v4.

The tree has two layers:

	RootSupervisor ("tastedeck")
	├── RefillSupervisor ("refill-layer")
	│   ├── refill.Worker   drains the bounded refill queue
	│   └── refill.Ticker   periodic watermark check (refill.check_interval > 0)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A refill worker that keeps failing backs off inside its own layer while the
API layer keeps serving decks from the existing inventory. Supervisor events
are logged through sutureslog on the slog adapter in package logging.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRefillService(refill.NewWorker(engine, logging.WithComponent("refill-worker")))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)
*/
package supervisor
