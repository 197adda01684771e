// Package fetcher exposes cached, authenticated content operations on
// top of a content source. Every read is cache-aside: a present,
// unexpired entry always wins over a live fetch.
package fetcher
