// Package index defines the chunk index that search runs against and the
// two-tier strategy that keeps it available.
//
// Two backends implement Store: index/remote talks to Azure AI Search and
// ranks on keywords and vectors; index/local keeps records in a single JSON
// file and ranks on keywords only. Tiered puts them in front of each other:
// every call tries the primary and, unless strict, falls back to the
// secondary, reporting in its Outcome which backend served the call.
package index
