// Package dedupe suppresses duplicate handling of channel events. Matrix
// may deliver the same event again after a reconnect; the bot records each
// event ID here and skips ones it has already processed.
package dedupe
