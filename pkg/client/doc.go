// Package client provides a Go client for the listingsearch sidecar: the
// semantic search service that indexes marketplace listings and ranks them
// against free-text queries.
//
// # Explicit client
//
//	c, _ := client.New(
//	    client.WithUnixSocket("/run/listingsearch/http.sock"),
//	    client.WithToken(os.Getenv("SEARCH_SERVICE_TOKEN")),
//	)
//	resp, err := c.Search(ctx, client.SearchRequest{
//	    Query:   "copper pipe fittings",
//	    Filters: map[string]any{"listing_type": "supply"},
//	})
//
// # Best-effort wrapper
//
// Marketplace request paths must survive a dead sidecar. BestEffort turns
// errors into explicit outcomes instead of raising them:
//
//	be := client.NewBestEffort(c)
//	be.Index(ctx, listing)                // Outcome, never an error
//	hits := be.SearchOrEmpty(ctx, req)    // empty slice when the sidecar is down
package client
