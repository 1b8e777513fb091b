// Tastedeck - Taste Deck Inventory Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tastedeck

/*
Package models defines the data structures shared across Tastedeck.

Model Categories:

 1. Inventory Rows:
    - Dish: a generated dish card with its taste signals
    - DishImage: the optional picture owned by one dish
    - GenerationJob: the ledger row written for every refill cycle

 2. API Request/Response Models:
    - DeckRequest / DeckResponse / DeckDish
    - AnalyzeRequest / AnalyzeResponse
    - HealthResponse, JobsResponse and ErrorDetail

JSON field names are the wire contract used by the mobile client and must
not change.
*/
package models
