// Package cache stores generated renditions on local disk, one file per
// voice and item: {root}/{voice}/{itemId}{ext}. The presence of a file is
// the authoritative record that a voice has been generated for an item.
package cache
