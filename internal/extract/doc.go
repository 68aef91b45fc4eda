// Package extract converts a rendered board page into an ordered,
// de-duplicated list of items using a chain of selector strategies tried from
// most to least structured.
package extract
