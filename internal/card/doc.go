// Package card renders proposals as interactive messages and owns the
// button-payload contract that must survive a round trip through the
// messaging surface. Rendering is pure; nothing here talks to the network.
package card
