// Package cache provides a Redis-backed cache for Entrez summary records.
//
// Eutils summary documents are immutable for a given uid on the timescale
// of a batch run, but the same uid is often summarized repeatedly when
// callers re-submit overlapping term lists. The cache stores the decoded
// summary payload under a fixed TTL so repeat lookups skip the network.
//
// The cache never stores the term-to-accession result mapping; it holds
// raw upstream records only.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.Key{Database: "nuccore", UID: "2194060993"}
//
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// fetch from eutils, then:
//		manager.Set(ctx, key, cache.NewEntry(data, 15*time.Minute))
//	}
//
// # Metrics
//
//   - resolver_cache_hits_total{layer="redis"} - Cache hits
//   - resolver_cache_misses_total - Cache misses
//   - resolver_cache_errors_total{operation} - Cache operation errors
package cache
