// Package mixengine is a real-time audio mixing engine. It mixes
// concurrently playing sources — in-memory clips and disk-streamed
// tracks — through a routing graph of groups, buses, and auxiliary
// sends, applies per-node effects and fades, and drives a bounded
// stereo block stream to a sound-card output.
package mixengine
